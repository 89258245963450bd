package main

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// newTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func newTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// openTestDB opens an empty SQLite database file in a temp directory the same
// way the server does.
func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "career.db")
	return openTestDBAt(t, path), path
}

func openTestDBAt(t *testing.T, path string) *sql.DB {
	t.Helper()

	adapter := &SQLiteAdapter{}
	dsn, err := adapter.BuildDSN(&Config{Database: path})
	require.NoError(t, err)

	db, err := OpenDatabase(context.Background(), adapter, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// openCareerDB opens a test database with the career schema migrated from
// testdata/migrations.
func openCareerDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "career.db")
	migrateCareerDB(t, path)
	return openTestDBAt(t, path)
}

// migrateCareerDB applies testdata/migrations to the database file at path.
func migrateCareerDB(t *testing.T, path string) {
	t.Helper()

	// Migrate on a separate handle; the server pool holds a single connection.
	migrateDB, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.Up(migrateDB, "testdata/migrations"))
	require.NoError(t, migrateDB.Close())
}

// seedCareerData inserts a small, fixed data set.
func seedCareerData(t *testing.T, db *sql.DB) {
	t.Helper()

	stmts := []string{
		`INSERT INTO projects (name, started_on) VALUES ('Billing rewrite', '2024-01-15')`,
		`INSERT INTO tasks (project_id, title, summary) VALUES (1, 'Migrate invoices', 'Move invoice generation to the queue worker')`,
		`INSERT INTO tasks (project_id, title, summary) VALUES (1, 'Kafka consumer lag', 'Investigate lag on the payments topic')`,
		`INSERT INTO decisions (task_id, title, context, conclusion, reasoning) VALUES (1, 'Use Kafka for invoices', 'Queue choice', 'Adopt Kafka', 'Team already runs it')`,
		`INSERT INTO decision_tags (decision_id, tag) VALUES (1, 'architecture')`,
		`INSERT INTO challenges (task_id, title, symptom, resolution) VALUES (2, 'Consumer stalls', 'Offsets stop moving', 'Raise max.poll.interval')`,
		`INSERT INTO outcomes (task_id, metric, value, measured_at) VALUES (1, 'Invoice latency p95', 1.5, '2024-03-01 09:15:00')`,
		`INSERT INTO contributions (project_id, description) VALUES (1, 'Led the O''Brien review of the billing schema')`,
		`INSERT INTO raw_notes (content, created_at) VALUES ('Remember to rotate the staging keys', '2024-02-01')`,
		`INSERT INTO raw_notes (content) VALUES ('Pairing session with the platform team')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		DataDir:      t.TempDir(),
		Driver:       "sqlite",
		DumpPath:     filepath.Join(t.TempDir(), "dumps", "career.sql"),
		QueryTimeout: 5 * time.Second,
		MaxRows:      100,
		SearchLimit:  DefaultSearchLimit,
		LogLevel:     "debug",
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}
