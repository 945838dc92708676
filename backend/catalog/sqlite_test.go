package catalog

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteCatalog(t *testing.T) *CatalogBackend {
	t.Helper()

	cb, err := NewSQLiteCatalog(backend.Options{"connectionString": ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, cb.Open(t.Context()))
	t.Cleanup(func() {
		cb.Close(t.Context())
	})

	statements := []string{
		`ATTACH DATABASE ':memory:' AS test_schema`,
		`CREATE TABLE test_schema.test_table (id INTEGER PRIMARY KEY, name TEXT NOT NULL, note TEXT)`,
		`CREATE TABLE main.other (value TEXT)`,
	}
	for _, statement := range statements {
		_, err := cb.db.ExecContext(t.Context(), statement)
		require.NoError(t, err)
	}
	for i := 1; i <= 12; i++ {
		_, err := cb.db.ExecContext(t.Context(), `INSERT INTO test_schema.test_table (id, name) VALUES (?, ?)`, i, fmt.Sprintf("row|%02d", i))
		require.NoError(t, err)
	}
	return cb
}

func readCat(t *testing.T, result *data.CatResult) string {
	t.Helper()

	content, err := io.ReadAll(result.Stream)
	require.NoError(t, err)
	require.NoError(t, result.Stream.Close())
	assert.Equal(t, int64(len(content)), result.Size)
	return string(content)
}

func TestSQLite_CatalogListing(t *testing.T) {
	cb := newSQLiteCatalog(t)
	ctx := t.Context()

	databases, err := cb.Ls(ctx, "/")
	require.NoError(t, err)
	require.NoError(t, data.ValidateListing("/", databases))
	require.Len(t, databases, 2)
	assert.Equal(t, "main", databases[0].Name)
	assert.Equal(t, "test_schema", databases[1].Name)
	assert.True(t, databases[1].IsFolder())

	tables, err := cb.Ls(ctx, "/test_schema")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "/test_schema/test_table", tables[0].FullPath)
	assert.True(t, tables[0].IsFolder())

	files, err := cb.Ls(ctx, "/test_schema/test_table")
	require.NoError(t, err)
	require.Len(t, files, 3)
	for i, name := range []string{ColumnsFile, CreateTableFile, SelectFile} {
		assert.Equal(t, name, files[i].Name)
		assert.Equal(t, "md", files[i].Extension)
		assert.Equal(t, "text/markdown", files[i].Type)
		assert.Equal(t, int64(0), files[i].Size)
	}

	_, err = cb.Ls(ctx, "/test_schema/test_table/columns.md")
	assert.ErrorIs(t, err, data.ErrNotDirectory)
	_, err = cb.Ls(ctx, "/missing")
	assert.ErrorIs(t, err, data.ErrNotExist)
	_, err = cb.Ls(ctx, "/test_schema/missing")
	assert.ErrorIs(t, err, data.ErrNotExist)
}

func TestSQLite_CatalogCat(t *testing.T) {
	cb := newSQLiteCatalog(t)
	ctx := t.Context()

	result, err := cb.Cat(ctx, "/test_schema/test_table/columns.md")
	require.NoError(t, err)
	assert.Equal(t, "test_schema.test_table.columns.md", result.Name)

	lines := strings.Split(readCat(t, result), "\n")
	assert.Equal(t, "| name | type    | notnull | dflt_value | pk  |", lines[0])
	assert.Equal(t, "| ---- | ------- | ------- | ---------- | --- |", lines[1])
	assert.Equal(t, "| id   | INTEGER | 0       | NULL       | 1   |", lines[2])
	assert.Equal(t, "| name | TEXT    | 1       | NULL       | 0   |", lines[3])

	result, err = cb.Cat(ctx, "/test_schema/test_table/select.md")
	require.NoError(t, err)
	content := readCat(t, result)
	lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	require.Len(t, lines, 12, "header, delimiter and ten rows")
	assert.Equal(t, `| 1   | row\|01 | NULL |`, lines[2])
	assert.NotContains(t, content, "row|11")

	result, err = cb.Cat(ctx, "/test_schema/test_table/create_table.md")
	require.NoError(t, err)
	content = readCat(t, result)
	assert.True(t, strings.HasPrefix(content, "```sql\nCREATE TABLE test_table"))
	assert.True(t, strings.HasSuffix(content, "\n```\n"))

	_, err = cb.Cat(ctx, "/test_schema/test_table")
	assert.ErrorIs(t, err, data.ErrUnderspecified)
	assert.Contains(t, err.Error(), "please specify the database, table and metadata")

	_, err = cb.Cat(ctx, "/test_schema/test_table/columns.md/extra")
	assert.ErrorIs(t, err, data.ErrUnderspecified)
	_, err = cb.Cat(ctx, "/test_schema/test_table/unknown.md")
	assert.ErrorIs(t, err, data.ErrNotExist)
	_, err = cb.Cat(ctx, "/test_schema/missing/select.md")
	assert.ErrorIs(t, err, data.ErrNotExist)
}

func TestSQLite_Options(t *testing.T) {
	cb, err := NewSQLiteCatalog(backend.Options{"connectionString": ":memory:", "maxRows": "2"}, nil)
	require.NoError(t, err)
	defer cb.Close(t.Context())
	assert.Equal(t, 2, cb.options.MaxRows)
	assert.False(t, cb.Capabilities().Contains(backend.CapabilityWrite))

	_, err = NewSQLiteCatalog(backend.Options{}, nil)
	assert.ErrorIs(t, err, data.ErrConfig)

	_, err = NewSQLiteCatalog(backend.Options{"connectionString": ":memory:", "maxRows": 0}, nil)
	assert.ErrorIs(t, err, data.ErrConfig)
}
