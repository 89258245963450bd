package main

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRemoveStringsAndComments(t *testing.T) {
	adapter := &SQLiteAdapter{}
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single-quoted string stripped",
			input:    "SELECT * FROM tasks WHERE title = 'DROP TABLE'",
			expected: "SELECT * FROM tasks WHERE title = ''",
		},
		{
			name:     "-- comment stripped",
			input:    "SELECT * FROM tasks -- comment",
			expected: "SELECT * FROM tasks  ",
		},
		{
			name:     "/* */ comment stripped",
			input:    "SELECT * FROM tasks /* comment */",
			expected: "SELECT * FROM tasks  ",
		},
		{
			name:     "backtick identifier preserved",
			input:    "SELECT * FROM `raw_notes`",
			expected: "SELECT * FROM `raw_notes`",
		},
		{
			name:     "bracket identifier preserved",
			input:    "SELECT * FROM [raw_notes]",
			expected: "SELECT * FROM [raw_notes]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := adapter.RemoveStringsAndComments(tc.input)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestSQLiteRemoveStringsAndComments_NoHash(t *testing.T) {
	adapter := &SQLiteAdapter{}
	// # is NOT a comment in SQLite
	result := adapter.RemoveStringsAndComments("SELECT # FROM tasks")
	if !strings.Contains(result, "#") {
		t.Errorf("# should not be treated as a comment in SQLite: %s", result)
	}
}

func TestSQLiteBuildDSN(t *testing.T) {
	adapter := &SQLiteAdapter{}

	dsn, err := adapter.BuildDSN(&Config{Database: "/data/career.db"})
	require.NoError(t, err)
	assert.Equal(t, "/data/career.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dsn)

	dsn, err = adapter.BuildDSN(&Config{Database: "file:career.db?mode=ro"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:career.db?mode=ro&_pragma="))

	_, err = adapter.BuildDSN(&Config{})
	assert.Error(t, err)
}

func TestSQLiteDatabaseName(t *testing.T) {
	adapter := &SQLiteAdapter{}
	tests := map[string]string{
		"/home/me/.career-pipeline/career.db":        "career",
		"/tmp/notes.sqlite3?_pragma=foreign_keys(1)": "notes",
		"archive.sqlite":                             "archive",
		"relative/path/plain":                        "plain",
	}
	for dsn, want := range tests {
		assert.Equal(t, want, adapter.DatabaseName(dsn), dsn)
	}
}

func TestSQLiteTablesAndIndexes(t *testing.T) {
	db, _ := openTestDB(t)
	seedGoldenData(t, db)
	_, err := db.Exec(`CREATE TABLE counters (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO counters (name) VALUES ('a')`)
	require.NoError(t, err)

	adapter := &SQLiteAdapter{}
	tables, err := adapter.Tables(context.Background(), db)
	require.NoError(t, err)

	var names []string
	for _, table := range tables {
		names = append(names, table.Name)
		assert.True(t, strings.HasPrefix(table.DDL, "CREATE TABLE"), table.DDL)
	}
	// sqlite_sequence is internal and must not be listed.
	assert.Equal(t, []string{"counters", "notes", "people"}, names)

	indexes, err := adapter.Indexes(context.Background(), db)
	require.NoError(t, err)
	// The UNIQUE constraint's automatic index has no DDL and is skipped.
	require.Len(t, indexes, 1)
	assert.Equal(t, "idx_people_name", indexes[0].Name)
	assert.Equal(t, "CREATE INDEX idx_people_name ON people (name)", indexes[0].DDL)
}

func TestSQLiteConfigurePinsSingleConnection(t *testing.T) {
	db, _ := openTestDB(t)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func columnTypesOf(t *testing.T, db *sql.DB, query string) []*sql.ColumnType {
	t.Helper()
	rows, err := db.Query(query)
	require.NoError(t, err)
	defer rows.Close()

	columns, err := rows.ColumnTypes()
	require.NoError(t, err)
	return columns
}

func TestSQLiteStoredTextQuery(t *testing.T) {
	db, _ := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE events (id INTEGER PRIMARY KEY, title TEXT, happened_on date, logged_at TIMESTAMP)`)
	require.NoError(t, err)
	adapter := &SQLiteAdapter{}

	t.Run("date columns read through expressions", func(t *testing.T) {
		query := "SELECT * FROM events;\n"
		raw, ok := adapter.StoredTextQuery(query, columnTypesOf(t, db, query))
		require.True(t, ok)
		assert.Equal(t, `SELECT "id", "title", `+
			`CASE WHEN typeof("happened_on") = 'text' THEN CAST("happened_on" AS TEXT) ELSE "happened_on" END AS "happened_on", `+
			`CASE WHEN typeof("logged_at") = 'text' THEN CAST("logged_at" AS TEXT) ELSE "logged_at" END AS "logged_at"`+
			" FROM (\nSELECT * FROM events\n)", raw)
	})

	t.Run("no date columns", func(t *testing.T) {
		query := "SELECT id, title FROM events"
		_, ok := adapter.StoredTextQuery(query, columnTypesOf(t, db, query))
		assert.False(t, ok)
	})

	t.Run("expressions carry no declared type", func(t *testing.T) {
		query := "SELECT date(happened_on) AS d FROM events"
		_, ok := adapter.StoredTextQuery(query, columnTypesOf(t, db, query))
		assert.False(t, ok)
	})

	t.Run("duplicate column names", func(t *testing.T) {
		query := "SELECT a.happened_on, b.happened_on FROM events a JOIN events b ON a.id = b.id"
		_, ok := adapter.StoredTextQuery(query, columnTypesOf(t, db, query))
		assert.False(t, ok)
	})
}

func TestSQLiteQueryRowsKeepsStoredDateText(t *testing.T) {
	db, _ := openTestDB(t)
	for _, stmt := range []string{
		`CREATE TABLE events (id INTEGER PRIMARY KEY, happened_on DATE, created_at DATETIME)`,
		`INSERT INTO events VALUES (1, '2024-01-15', '2024-01-15 10:00:00')`,
		`INSERT INTO events VALUES (2, 1700000000, NULL)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	rows, truncated, err := queryRows(context.Background(), db, &SQLiteAdapter{}, 0,
		"SELECT id, happened_on, created_at FROM events WHERE id >= ? ORDER BY id", 1)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "happened_on", "created_at"}, rows[0].Columns)
	assert.Equal(t, []any{int64(1), "2024-01-15", "2024-01-15 10:00:00"}, rows[0].Values)
	assert.Equal(t, []any{int64(2), int64(1700000000), nil}, rows[1].Values)
}
