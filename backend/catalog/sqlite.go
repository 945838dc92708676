package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const SQLiteKind = "sqlite"

// SQLite exposes attached databases, "main" being the opened file.
var SQLite Dialect = sqliteDialect{}

type sqliteDialect struct{}

// NewSQLiteCatalog opens the database file; ":memory:" is accepted.
func NewSQLiteCatalog(opts backend.Options, settings *backend.Settings) (*CatalogBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(SQLiteKind, opts, options); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", options.ConnectionString)
	if err != nil {
		return nil, data.ConfigError(SQLiteKind, err)
	}
	// Attached databases belong to a single connection.
	db.SetMaxOpenConns(1)

	return NewCatalogBackendWithDB(db, SQLite, options, settings), nil
}

func (sqliteDialect) Name() string {
	return SQLiteKind
}

func (sqliteDialect) Metadata() []string {
	return []string{ColumnsFile, CreateTableFile, SelectFile}
}

func (sqliteDialect) Databases(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names, `SELECT name FROM pragma_database_list WHERE name <> 'temp' ORDER BY seq`)
	return names, err
}

func (sqliteDialect) Tables(ctx context.Context, db *sqlx.DB, database string) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names, `SELECT name FROM pragma_table_list
		WHERE schema = ? AND type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`, database)
	return names, err
}

func (sqliteDialect) Columns(ctx context.Context, db *sqlx.DB, database, table string) (*sqlx.Rows, error) {
	return db.QueryxContext(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?, ?)`, table, database)
}

func (sqliteDialect) Select(ctx context.Context, db *sqlx.DB, database, table string, limit int) (*sqlx.Rows, error) {
	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT %d", quoteIdent(database), quoteIdent(table), limit)
	return db.QueryxContext(ctx, query)
}

func (sqliteDialect) CreateTable(ctx context.Context, db *sqlx.DB, database, table string) (string, error) {
	var statement string
	query := fmt.Sprintf("SELECT sql FROM %s.sqlite_master WHERE type = 'table' AND name = ?", quoteIdent(database))
	err := db.GetContext(ctx, &statement, query, table)
	return statement, err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
