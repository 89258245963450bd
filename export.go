package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// dumpTimeFormat is the header timestamp layout (UTC, millisecond precision).
const dumpTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ExportResult describes a written dump file.
type ExportResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Tables  int    `json:"tables"`
	Size    int64  `json:"size"`
}

// Exporter serializes the whole database into one replayable SQL script.
type Exporter struct {
	db      *sql.DB
	adapter DBAdapter
	logger  *slog.Logger
	now     func() time.Time
}

// NewExporter creates an Exporter reading through db.
func NewExporter(db *sql.DB, adapter DBAdapter, logger *slog.Logger) *Exporter {
	return &Exporter{
		db:      db,
		adapter: adapter,
		logger:  logger,
		now:     time.Now,
	}
}

// Export renders the dump and writes it to path, replacing any existing file.
// Nothing is written if any read fails.
func (e *Exporter) Export(ctx context.Context, path string) (*ExportResult, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &IOError{Path: filepath.Dir(path), Err: err}
	}

	script, tableCount, err := e.Render(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, script, 0o644); err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	e.logger.Info("database exported", "path", path, "tables", tableCount, "bytes", info.Size())
	return &ExportResult{
		Success: true,
		Path:    path,
		Tables:  tableCount,
		Size:    info.Size(),
	}, nil
}

// Render builds the dump script in memory and returns it with the number of
// tables it contains.
func (e *Exporter) Render(ctx context.Context) ([]byte, int, error) {
	tables, err := e.adapter.Tables(ctx, e.db)
	if err != nil {
		return nil, 0, &StorageError{Op: "list tables", Err: err}
	}
	slices.SortFunc(tables, func(a, b TableDef) int { return strings.Compare(a.Name, b.Name) })

	begin, commit := e.adapter.TransactionMarkers()

	var sb strings.Builder
	sb.WriteString("-- " + ServerName + " database dump\n")
	sb.WriteString("-- Generated: " + e.now().UTC().Format(dumpTimeFormat) + "\n")
	sb.WriteString(begin + "\n\n")

	for _, table := range tables {
		if table.DDL != "" {
			sb.WriteString(table.DDL + ";\n\n")
		}
		if err := e.writeRows(ctx, &sb, table.Name); err != nil {
			return nil, 0, &StorageError{Op: "read table", Table: table.Name, Err: err}
		}
		sb.WriteString("\n")
	}

	indexes, err := e.adapter.Indexes(ctx, e.db)
	if err != nil {
		return nil, 0, &StorageError{Op: "list indexes", Err: err}
	}
	slices.SortFunc(indexes, func(a, b IndexDef) int { return strings.Compare(a.Name, b.Name) })
	for _, idx := range indexes {
		sb.WriteString(idx.DDL + ";\n")
	}
	sb.WriteString("\n" + commit + "\n")

	return []byte(sb.String()), len(tables), nil
}

func (e *Exporter) writeRows(ctx context.Context, sb *strings.Builder, table string) error {
	quotedTable := e.adapter.QuoteIdent(table)

	result, _, err := queryRows(ctx, e.db, e.adapter, 0, "SELECT * FROM "+quotedTable)
	if err != nil {
		return err
	}
	if len(result) == 0 {
		return nil
	}

	quotedCols := make([]string, len(result[0].Columns))
	for i, col := range result[0].Columns {
		quotedCols[i] = e.adapter.QuoteIdent(col)
	}
	colList := strings.Join(quotedCols, ", ")

	vals := make([]string, len(quotedCols))
	for _, row := range result {
		for i, v := range row.Values {
			vals[i] = formatLiteral(v)
		}
		fmt.Fprintf(sb, "INSERT INTO %s (%s) VALUES (%s);\n", quotedTable, colList, strings.Join(vals, ", "))
	}
	return nil
}
