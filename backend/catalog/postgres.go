package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

const PostgresKind = "postgres"

// Postgres treats schemas as databases, like Presto does with its catalogs.
var Postgres Dialect = postgresDialect{}

type postgresDialect struct{}

// NewPostgresCatalog creates the connection pool lazily, nothing is dialed before Open.
// The connection string should be a standard PostgreSQL connection string or URL.
func NewPostgresCatalog(ctx context.Context, opts backend.Options, settings *backend.Settings) (*CatalogBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(PostgresKind, opts, options); err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(options.ConnectionString)
	if err != nil {
		return nil, data.ConfigError(PostgresKind, fmt.Errorf("invalid connection string: %w", err))
	}
	// Catalog queries are one-off, skip the prepared statement cache.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	if options.MaxConns > 0 {
		config.MaxConns = options.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, data.ConfigError(PostgresKind, fmt.Errorf("failed to create connection pool: %w", err))
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	cb := NewCatalogBackendWithDB(db, Postgres, options, settings)
	cb.release = pool.Close
	return cb, nil
}

func (postgresDialect) Name() string {
	return PostgresKind
}

func (postgresDialect) Metadata() []string {
	return []string{ColumnsFile, SelectFile}
}

func (postgresDialect) Databases(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names, `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		AND schema_name NOT LIKE 'pg_toast%' AND schema_name NOT LIKE 'pg_temp%'
		ORDER BY schema_name`)
	return names, err
}

func (postgresDialect) Tables(ctx context.Context, db *sqlx.DB, database string) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names, db.Rebind(`SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? ORDER BY table_name`), database)
	return names, err
}

func (postgresDialect) Columns(ctx context.Context, db *sqlx.DB, database, table string) (*sqlx.Rows, error) {
	return db.QueryxContext(ctx, db.Rebind(`SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`), database, table)
}

func (postgresDialect) Select(ctx context.Context, db *sqlx.DB, database, table string, limit int) (*sqlx.Rows, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", pgx.Identifier{database, table}.Sanitize(), limit)
	return db.QueryxContext(ctx, query)
}

func (postgresDialect) CreateTable(ctx context.Context, db *sqlx.DB, database, table string) (string, error) {
	return "", data.Unsupported(CreateTableFile, PostgresKind)
}
