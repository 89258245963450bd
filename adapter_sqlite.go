package main

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter implements DBAdapter for SQLite databases.
type SQLiteAdapter struct{}

func (a *SQLiteAdapter) DriverName() string { return "sqlite" }
func (a *SQLiteAdapter) URIScheme() string  { return "sqlite" }

// sqlitePragmas are applied per connection through the DSN.
var sqlitePragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

func (a *SQLiteAdapter) BuildDSN(cfg *Config) (string, error) {
	dbPath := cfg.Database
	if dbPath == "" {
		return "", fmt.Errorf("missing required setting: database")
	}

	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(params, "&"), nil
}

func (a *SQLiteAdapter) DatabaseName(dsn string) string {
	// DSN is a file path, possibly with ?_pragma=... parameters
	path := dsn
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	// Extract just the filename without directory
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	// Remove common extensions for display
	name = strings.TrimSuffix(name, ".db")
	name = strings.TrimSuffix(name, ".sqlite")
	name = strings.TrimSuffix(name, ".sqlite3")
	return name
}

func (a *SQLiteAdapter) Configure(_ context.Context, db *sql.DB) error {
	// SQLite only supports one writer at a time; every operation shares
	// a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return nil
}

func (a *SQLiteAdapter) Placeholder(int) string { return "?" }

func (a *SQLiteAdapter) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (a *SQLiteAdapter) Tables(ctx context.Context, db *sql.DB) ([]TableDef, error) {
	// SQLite has no information_schema. Use sqlite_master.
	rows, err := db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []TableDef
	for rows.Next() {
		var name string
		var ddl sql.NullString
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, TableDef{Name: name, DDL: ddl.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

func (a *SQLiteAdapter) Indexes(ctx context.Context, db *sql.DB) ([]IndexDef, error) {
	// Automatic indexes (UNIQUE/PRIMARY KEY constraints) have no sql and are
	// recreated by the table DDL.
	rows, err := db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'index' AND sql IS NOT NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer rows.Close()

	var indexes []IndexDef
	for rows.Next() {
		var idx IndexDef
		if err := rows.Scan(&idx.Name, &idx.DDL); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}
	return indexes, nil
}

// sqliteTimeTypes are the declared column types whose TEXT values the driver
// parses into time.Time.
var sqliteTimeTypes = []string{"DATE", "DATETIME", "TIMESTAMP"}

// StoredTextQuery wraps query in an outer select that reads every date-typed
// column through an expression. Expressions carry no declared type, so the
// driver hands back the stored text (or integer) untouched. Results with
// duplicate column names cannot be addressed from the outer select and are
// left alone.
func (a *SQLiteAdapter) StoredTextQuery(query string, columns []*sql.ColumnType) (string, bool) {
	seen := make(map[string]bool, len(columns))
	exprs := make([]string, len(columns))
	rewrite := false

	for i, col := range columns {
		name := col.Name()
		if seen[name] {
			return "", false
		}
		seen[name] = true

		q := a.QuoteIdent(name)
		if slices.Contains(sqliteTimeTypes, col.DatabaseTypeName()) {
			exprs[i] = fmt.Sprintf("CASE WHEN typeof(%s) = 'text' THEN CAST(%s AS TEXT) ELSE %s END AS %s", q, q, q, q)
			rewrite = true
		} else {
			exprs[i] = q
		}
	}
	if !rewrite {
		return "", false
	}

	inner := strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
	return "SELECT " + strings.Join(exprs, ", ") + " FROM (\n" + inner + "\n)", true
}

func (a *SQLiteAdapter) TransactionMarkers() (string, string) {
	return "BEGIN TRANSACTION;", "COMMIT;"
}

// RemoveStringsAndComments blanks literals and comments. SQLite has no #
// comments or backslash escapes and accepts `backtick` and [bracket] names.
func (a *SQLiteAdapter) RemoveStringsAndComments(sql string) string {
	return stripStringsAndComments(sql, sqliteStripRules)
}
