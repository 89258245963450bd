package main

import (
	"context"
	"database/sql"
)

// TableDef is a user table together with the statement that recreates it.
type TableDef struct {
	Name string
	DDL  string
}

// IndexDef is a standalone index creation statement.
type IndexDef struct {
	Name string
	DDL  string
}

// DBAdapter defines the contract for database-specific behavior.
// Each supported database (SQLite, PostgreSQL, MySQL) implements this interface.
type DBAdapter interface {
	// DriverName returns the database/sql driver name (e.g., "sqlite", "postgres", "mysql").
	DriverName() string

	// URIScheme returns the resource URI scheme (e.g., "sqlite", "postgres", "mysql").
	URIScheme() string

	// BuildDSN constructs a DSN from the loaded configuration.
	BuildDSN(cfg *Config) (string, error)

	// DatabaseName extracts the database/file name from a DSN string.
	DatabaseName(dsn string) string

	// Configure applies connection-level settings after the pool is opened.
	Configure(ctx context.Context, db *sql.DB) error

	// Placeholder returns the bind placeholder for the n-th (1-based) argument.
	Placeholder(n int) string

	// QuoteIdent quotes a table or column name for generated statements.
	QuoteIdent(name string) string

	// Tables lists user tables (no engine-internal tables) with their
	// creation statements.
	Tables(ctx context.Context, db *sql.DB) ([]TableDef, error)

	// Indexes lists standalone index creation statements. Engines that embed
	// indexes in the table DDL return none.
	Indexes(ctx context.Context, db *sql.DB) ([]IndexDef, error)

	// StoredTextQuery rewrites query, whose result has the given columns, so
	// that values come back as stored instead of converted by the driver. It
	// reports false when no rewrite is needed or possible.
	StoredTextQuery(query string, columns []*sql.ColumnType) (string, bool)

	// TransactionMarkers returns the statements that open and commit a dump.
	TransactionMarkers() (begin, commit string)

	// RemoveStringsAndComments strips string literals and comments from SQL
	// for safe keyword detection.
	RemoveStringsAndComments(sql string) string
}

// adapterFor returns the adapter registered for a configured driver name.
func adapterFor(driver string) (DBAdapter, bool) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return &SQLiteAdapter{}, true
	case "postgres", "postgresql":
		return &PostgresAdapter{}, true
	case "mysql":
		return &MySQLAdapter{}, true
	default:
		return nil, false
	}
}
