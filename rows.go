package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Row is a single result row that keeps the column order of the query.
type Row struct {
	Columns []string
	Values  []any
}

// MarshalJSON encodes the row as an object whose keys follow column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// queryRows runs query and scans its result with scanRows. When the adapter
// reports that the driver would convert some columns, the query is run again
// in its stored-text form. If that form fails to run, the converted values
// are returned instead.
func queryRows(ctx context.Context, db *sql.DB, adapter DBAdapter, limit int, query string, args ...any) ([]Row, bool, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}

	columns, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, false, fmt.Errorf("failed to get column types: %w", err)
	}

	if raw, ok := adapter.StoredTextQuery(query, columns); ok {
		// Release the first result before querying again; SQLite runs on a
		// single connection.
		rows.Close()
		rows, err = db.QueryContext(ctx, raw, args...)
		if err != nil {
			rows, err = db.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, false, err
			}
		}
	}
	defer rows.Close()

	return scanRows(rows, limit)
}

// scanRows reads every row from rows. When limit is positive, reading stops
// after limit rows and truncated reports whether more rows were available.
func scanRows(rows *sql.Rows, limit int) (result []Row, truncated bool, err error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get columns: %w", err)
	}

	result = []Row{}
	for rows.Next() {
		if limit > 0 && len(result) >= limit {
			truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, false, fmt.Errorf("failed to scan row %d: %w", len(result)+1, err)
		}

		for i, val := range values {
			// Convert []byte to string for JSON serialization
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, Row{Columns: columns, Values: values})
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("row iteration error: %w", err)
	}
	return result, truncated, nil
}
