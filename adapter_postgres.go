package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
)

// PostgresAdapter implements DBAdapter for PostgreSQL databases.
type PostgresAdapter struct{}

func (a *PostgresAdapter) DriverName() string { return "postgres" }
func (a *PostgresAdapter) URIScheme() string  { return "postgres" }

func (a *PostgresAdapter) BuildDSN(cfg *Config) (string, error) {
	if cfg.Database != "" {
		return cfg.Database, nil
	}

	pg := cfg.Postgres
	sslmode := pg.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}

	var missing []string
	if pg.Host == "" {
		missing = append(missing, "postgres.host")
	}
	if pg.Port == "" {
		missing = append(missing, "postgres.port")
	}
	if pg.Name == "" {
		missing = append(missing, "postgres.name")
	}
	if pg.User == "" {
		missing = append(missing, "postgres.user")
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required settings: %v", missing)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pg.User, pg.Password),
		Host:     pg.Host + ":" + pg.Port,
		Path:     "/" + pg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String(), nil
}

func (a *PostgresAdapter) DatabaseName(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(u.Path, "/")
	}
	// key=value form
	for _, field := range strings.Fields(dsn) {
		if name, ok := strings.CutPrefix(field, "dbname="); ok {
			return strings.Trim(name, "'")
		}
	}
	return ""
}

func (a *PostgresAdapter) Configure(context.Context, *sql.DB) error { return nil }

func (a *PostgresAdapter) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (a *PostgresAdapter) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

func (a *PostgresAdapter) Tables(ctx context.Context, db *sql.DB) ([]TableDef, error) {
	rows, err := db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_catalog = current_database() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	rows.Close()

	tables := make([]TableDef, 0, len(names))
	for _, name := range names {
		ddl, err := a.tableDDL(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, TableDef{Name: name, DDL: ddl})
	}
	return tables, nil
}

// tableDDL rebuilds a CREATE TABLE statement from information_schema, since
// PostgreSQL does not keep the original text. Constraints other than NOT NULL
// come back through the index definitions.
func (a *PostgresAdapter) tableDDL(ctx context.Context, db *sql.DB, table string) (string, error) {
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, character_maximum_length, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return "", fmt.Errorf("failed to get schema for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var colName, dataType, isNullable string
		var maxLen sql.NullInt64
		var colDefault sql.NullString

		if err := rows.Scan(&colName, &dataType, &maxLen, &isNullable, &colDefault); err != nil {
			return "", fmt.Errorf("failed to scan column info: %w", err)
		}
		cols = append(cols, "    "+postgresColumnDef(colName, dataType, maxLen, isNullable, colDefault))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error reading schema: %w", err)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", pq.QuoteIdentifier(table), strings.Join(cols, ",\n")), nil
}

func postgresColumnDef(name, dataType string, maxLen sql.NullInt64, isNullable string, colDefault sql.NullString) string {
	colType := dataType
	if maxLen.Valid {
		colType = fmt.Sprintf("%s(%d)", dataType, maxLen.Int64)
	}

	// Sequences are not part of the dump; turn owned sequences back into serials.
	if colDefault.Valid && strings.HasPrefix(colDefault.String, "nextval(") {
		switch dataType {
		case "smallint":
			colType = "smallserial"
		case "bigint":
			colType = "bigserial"
		default:
			colType = "serial"
		}
		colDefault.Valid = false
	}

	def := pq.QuoteIdentifier(name) + " " + colType
	if isNullable == "NO" {
		def += " NOT NULL"
	}
	if colDefault.Valid {
		def += " DEFAULT " + colDefault.String
	}
	return def
}

func (a *PostgresAdapter) Indexes(ctx context.Context, db *sql.DB) ([]IndexDef, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT indexname, indexdef FROM pg_indexes WHERE schemaname = 'public' ORDER BY indexname`)
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

// StoredTextQuery never rewrites: lib/pq returns date and timestamp columns as
// time.Time, which formatLiteral renders in a form PostgreSQL reads back.
func (a *PostgresAdapter) StoredTextQuery(string, []*sql.ColumnType) (string, bool) {
	return "", false
}

func (a *PostgresAdapter) TransactionMarkers() (string, string) {
	return "BEGIN TRANSACTION;", "COMMIT;"
}

// RemoveStringsAndComments blanks literals, including dollar-quoted bodies,
// and comments.
func (a *PostgresAdapter) RemoveStringsAndComments(sql string) string {
	return stripStringsAndComments(sql, postgresStripRules)
}
