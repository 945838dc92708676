package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/mwantia/folders/backend"
)

const (
	ColumnsFile     = "columns.md"
	SelectFile      = "select.md"
	CreateTableFile = "create_table.md"
)

// Dialect knows how one database engine lists its catalog.
// Identifiers passed in have been verified against the catalog before.
type Dialect interface {
	Name() string
	// Metadata lists the synthetic files shown inside every table.
	Metadata() []string
	Databases(ctx context.Context, db *sqlx.DB) ([]string, error)
	Tables(ctx context.Context, db *sqlx.DB, database string) ([]string, error)
	Columns(ctx context.Context, db *sqlx.DB, database, table string) (*sqlx.Rows, error)
	Select(ctx context.Context, db *sqlx.DB, database, table string, limit int) (*sqlx.Rows, error)
	CreateTable(ctx context.Context, db *sqlx.DB, database, table string) (string, error)
}

// CatalogBackend maps database, table and metadata file onto three
// directory levels. Every level issues one catalog query.
type CatalogBackend struct {
	settings *backend.Settings
	options  *Options
	dialect  Dialect
	db       *sqlx.DB
	release  func()
}

// Options configures the catalog connection.
type Options struct {
	ConnectionString string `option:"connectionString" validate:"required"`
	// MaxRows limits the rows rendered into select.md.
	MaxRows  int   `option:"maxRows" validate:"min=1,max=1000"`
	MaxConns int32 `option:"maxConns" validate:"min=0"`
}

func defaultOptions() *Options {
	return &Options{
		MaxRows:  10,
		MaxConns: 4,
	}
}

// NewCatalogBackendWithDB uses an open database handle, options must already be validated.
func NewCatalogBackendWithDB(db *sqlx.DB, dialect Dialect, options *Options, settings *backend.Settings) *CatalogBackend {
	return &CatalogBackend{
		settings: settings.WithDefaults(dialect.Name()),
		options:  options,
		dialect:  dialect,
		db:       db,
	}
}

// Register adds the postgres and sqlite kinds to reg.
func Register(reg *backend.Registry) error {
	err := reg.Register(PostgresKind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewPostgresCatalog(ctx, opts, settings)
	}, "postgresql")
	if err != nil {
		return err
	}

	return reg.Register(SQLiteKind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewSQLiteCatalog(opts, settings)
	}, "sqlite3")
}

// Name returns the identifier name defined for this backend
func (cb *CatalogBackend) Name() string {
	return cb.dialect.Name()
}

// Open verifies the connection.
func (cb *CatalogBackend) Open(ctx context.Context) error {
	return cb.db.PingContext(ctx)
}

// Close releases the database handle.
func (cb *CatalogBackend) Close(ctx context.Context) error {
	err := cb.db.Close()
	if cb.release != nil {
		cb.release()
	}
	return err
}

// Capabilities returns the operations supported by this backend.
func (cb *CatalogBackend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityCat,
			backend.CapabilityLs,
		},
	}
}
