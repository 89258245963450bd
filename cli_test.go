package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateConfig(t)

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	t.Log(stderr.String())
	return stdout.String(), err
}

// seededDatabaseFile creates a migrated and seeded career database and
// returns its path.
func seededDatabaseFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "career.db")
	migrateCareerDB(t, path)
	db := openTestDBAt(t, path)
	seedCareerData(t, db)
	require.NoError(t, db.Close())
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "career-pipeline 1.0.0 (MCP 2024-11-05)\n", out)
}

func TestSearchCommand_JSON(t *testing.T) {
	dbPath := seededDatabaseFile(t)

	out, err := executeCommand(t, "--database", dbPath, "search", "Kafka", "--json")
	require.NoError(t, err)

	var results map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Contains(t, results, "Tasks")
	assert.Contains(t, results, "Decisions")
	assert.Len(t, results, 2)
}

func TestSearchCommand_Table(t *testing.T) {
	dbPath := seededDatabaseFile(t)

	out, err := executeCommand(t, "--database", dbPath, "search", "staging")
	require.NoError(t, err)
	assert.Contains(t, out, "Raw Notes")
	assert.Contains(t, out, "Remember to rotate the staging keys")

	out, err = executeCommand(t, "--database", dbPath, "search", "zeppelin")
	require.NoError(t, err)
	assert.Equal(t, "No results found for \"zeppelin\".\n", out)
}

func TestSearchCommand_NoResultsQuotesKeywordVerbatim(t *testing.T) {
	dbPath := seededDatabaseFile(t)

	out, err := executeCommand(t, "--database", dbPath, "search", `it's "done" \o/`)
	require.NoError(t, err)
	assert.Equal(t, `No results found for "it's "done" \o/".`+"\n", out)
}

func TestDumpCommand(t *testing.T) {
	dbPath := seededDatabaseFile(t)
	output := filepath.Join(t.TempDir(), "out", "career.sql")

	out, err := executeCommand(t, "--database", dbPath, "dump", "-o", output, "--json")
	require.NoError(t, err)

	var result ExportResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Equal(t, output, result.Path)
	assert.FileExists(t, output)
}

func TestRootCommand_InvalidDriver(t *testing.T) {
	_, err := executeCommand(t, "--driver", "oracle", "search", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
