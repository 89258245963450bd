package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLiteralLayout renders time.Time values from drivers that return
// typed timestamps (lib/pq). SQLite dates are read as stored text and never
// reach it.
const timestampLiteralLayout = "2006-01-02 15:04:05.999999999-07:00"

// formatLiteral renders a scanned column value as a SQL literal.
// Numbers are emitted bare, NULL as the keyword, and everything else as a
// single-quoted string with embedded quotes doubled. No other escaping is done.
func formatLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return formatFloat(val, 64)
	case float32:
		return formatFloat(float64(val), 32)
	case string:
		return quoteLiteral(val)
	case []byte:
		return quoteLiteral(string(val))
	case time.Time:
		return quoteLiteral(val.Format(timestampLiteralLayout))
	default:
		return quoteLiteral(fmt.Sprint(val))
	}
}

func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NULL"
	case math.IsInf(f, 1):
		return "1e999"
	case math.IsInf(f, -1):
		return "-1e999"
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	// Keep a REAL a REAL on replay.
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
