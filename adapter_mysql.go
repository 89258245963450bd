package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQLAdapter implements DBAdapter for MySQL databases.
type MySQLAdapter struct{}

func (a *MySQLAdapter) DriverName() string { return "mysql" }
func (a *MySQLAdapter) URIScheme() string  { return "mysql" }

func (a *MySQLAdapter) BuildDSN(cfg *Config) (string, error) {
	if cfg.Database != "" {
		return cfg.Database, nil
	}

	my := cfg.MySQL
	var missing []string
	if my.Host == "" {
		missing = append(missing, "mysql.host")
	}
	if my.Port == "" {
		missing = append(missing, "mysql.port")
	}
	if my.Name == "" {
		missing = append(missing, "mysql.name")
	}
	if my.User == "" {
		missing = append(missing, "mysql.user")
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required settings: %v", missing)
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = my.User
	dsnCfg.Passwd = my.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = my.Host + ":" + my.Port
	dsnCfg.DBName = my.Name
	return dsnCfg.FormatDSN(), nil
}

func (a *MySQLAdapter) DatabaseName(dsn string) string {
	// DSN format: user:password@tcp(host:port)/dbname?params
	dsnCfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return dsnCfg.DBName
}

func (a *MySQLAdapter) Configure(context.Context, *sql.DB) error { return nil }

func (a *MySQLAdapter) Placeholder(int) string { return "?" }

func (a *MySQLAdapter) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (a *MySQLAdapter) Tables(ctx context.Context, db *sql.DB) ([]TableDef, error) {
	rows, err := db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
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
		var tableName, ddl string
		err := db.QueryRowContext(ctx, "SHOW CREATE TABLE "+a.QuoteIdent(name)).Scan(&tableName, &ddl)
		if err != nil {
			return nil, fmt.Errorf("failed to get schema for %s: %w", name, err)
		}
		tables = append(tables, TableDef{Name: name, DDL: ddl})
	}
	return tables, nil
}

// Indexes returns nothing: SHOW CREATE TABLE already carries every index.
func (a *MySQLAdapter) Indexes(context.Context, *sql.DB) ([]IndexDef, error) {
	return nil, nil
}

// StoredTextQuery never rewrites: without parseTime the driver returns
// temporal columns as raw bytes.
func (a *MySQLAdapter) StoredTextQuery(string, []*sql.ColumnType) (string, bool) {
	return "", false
}

func (a *MySQLAdapter) TransactionMarkers() (string, string) {
	return "START TRANSACTION;", "COMMIT;"
}

// RemoveStringsAndComments blanks literals and comments. MySQL reads # as a
// comment, \ as an escape, and "..." as a string.
func (a *MySQLAdapter) RemoveStringsAndComments(sql string) string {
	return stripStringsAndComments(sql, mysqlStripRules)
}
