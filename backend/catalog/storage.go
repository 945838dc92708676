package catalog

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

func (cb *CatalogBackend) Ls(ctx context.Context, p string) ([]*data.Entry, error) {
	addr, err := data.SplitCatalog(p, cb.dialect.Metadata())
	if err != nil {
		return nil, err
	}

	switch addr.Level() {
	case 0:
		databases, err := cb.dialect.Databases(ctx, cb.db)
		if err != nil {
			return nil, data.BackendError("ls", p, err)
		}
		return backend.FolderListing("/", databases, nil), nil

	case 1:
		tables, err := cb.dialect.Tables(ctx, cb.db, addr.Database)
		if err != nil {
			return nil, data.BackendError("ls", p, err)
		}
		if len(tables) == 0 {
			if err := cb.ensureDatabase(ctx, "ls", p, addr.Database); err != nil {
				return nil, err
			}
		}
		return backend.FolderListing(data.JoinPath(addr.Database), tables, nil), nil

	case 2:
		if err := cb.ensureTable(ctx, "ls", p, addr.Database, addr.Table); err != nil {
			return nil, err
		}
		return backend.FileListing(data.JoinPath(addr.Database, addr.Table), cb.dialect.Metadata()), nil
	}
	return nil, data.NotDirectory("ls", p)
}

func (cb *CatalogBackend) Cat(ctx context.Context, p string) (*data.CatResult, error) {
	addr, err := data.SplitCatalog(p, cb.dialect.Metadata())
	if err != nil {
		return nil, err
	}
	if addr.Level() < 3 {
		return nil, data.NewError(data.ErrUnderspecified, "cat", p, nil).
			WithMessage("please specify the database, table and metadata")
	}

	if err := cb.ensureTable(ctx, "cat", p, addr.Database, addr.Table); err != nil {
		return nil, err
	}

	var content string
	switch addr.Metadata {
	case ColumnsFile:
		rows, err := cb.dialect.Columns(ctx, cb.db, addr.Database, addr.Table)
		if err != nil {
			return nil, data.BackendError("cat", p, err)
		}
		content, err = renderRows(rows)
		if err != nil {
			return nil, data.BackendError("cat", p, err)
		}

	case SelectFile:
		rows, err := cb.dialect.Select(ctx, cb.db, addr.Database, addr.Table, cb.options.MaxRows)
		if err != nil {
			return nil, data.BackendError("cat", p, err)
		}
		content, err = renderRows(rows)
		if err != nil {
			return nil, data.BackendError("cat", p, err)
		}

	case CreateTableFile:
		statement, err := cb.dialect.CreateTable(ctx, cb.db, addr.Database, addr.Table)
		if err != nil {
			return nil, data.BackendError("cat", p, err)
		}
		content = renderCreateTable(statement)
	}

	name := addr.Database + "." + addr.Table + "." + addr.Metadata
	cb.settings.Logger.Debug("Cat: rendered %d bytes for '%s'", len(content), name)
	return backend.NewCatResult(ctx, io.NopCloser(strings.NewReader(content)), int64(len(content)), name), nil
}

func (cb *CatalogBackend) ensureDatabase(ctx context.Context, op, p, database string) error {
	databases, err := cb.dialect.Databases(ctx, cb.db)
	if err != nil {
		return data.BackendError(op, p, err)
	}
	if !slices.Contains(databases, database) {
		return data.NotFound(op, p)
	}
	return nil
}

// ensureTable verifies both names against the catalog before they are
// interpolated into a query.
func (cb *CatalogBackend) ensureTable(ctx context.Context, op, p, database, table string) error {
	tables, err := cb.dialect.Tables(ctx, cb.db, database)
	if err != nil {
		return data.BackendError(op, p, err)
	}
	if !slices.Contains(tables, table) {
		return data.NotFound(op, p)
	}
	return nil
}
