package main

import "strings"

// stripRules lists the lexical forms an engine reads as comments, string
// literals or quoted identifiers. The classifier only needs the leading
// keyword and any top-level semicolon to survive stripping.
type stripRules struct {
	hashComments     bool // # runs to end of line
	backslashEscapes bool // \x inside quoted strings
	dollarQuotes     bool // $$...$$ and $tag$...$tag$
	doubleQuoteText  bool // "..." is a string, not an identifier
	backtickIdents   bool
	bracketIdents    bool
}

var (
	sqliteStripRules   = stripRules{backtickIdents: true, bracketIdents: true}
	postgresStripRules = stripRules{dollarQuotes: true}
	mysqlStripRules    = stripRules{hashComments: true, backslashEscapes: true, doubleQuoteText: true, backtickIdents: true}
)

// stripStringsAndComments replaces every comment with a single space and
// every string literal with an empty one. Quoted identifiers are kept so a
// keyword used as a name is still visible as a name.
func stripStringsAndComments(sql string, rules stripRules) string {
	var out strings.Builder
	n := len(sql)

	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-',
			c == '#' && rules.hashComments:
			i = skipLine(sql, i)
			out.WriteByte(' ')

		case c == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += 2 + end + 2
			}
			out.WriteByte(' ')

		case c == '$' && rules.dollarQuotes && dollarQuoteEnd(sql, i) > 0:
			i = dollarQuoteEnd(sql, i)
			out.WriteString("''")

		case c == '\'':
			i = skipQuoted(sql, i, '\'', rules.backslashEscapes)
			out.WriteString("''")

		case c == '"' && rules.doubleQuoteText:
			i = skipQuoted(sql, i, '"', rules.backslashEscapes)
			out.WriteString(`""`)

		case c == '"':
			i = copyIdent(&out, sql, i, '"', '"')

		case c == '`' && rules.backtickIdents:
			i = copyIdent(&out, sql, i, '`', '`')

		case c == '[' && rules.bracketIdents:
			i = copyIdent(&out, sql, i, '[', ']')

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

func skipLine(sql string, i int) int {
	if end := strings.IndexByte(sql[i:], '\n'); end >= 0 {
		return i + end
	}
	return len(sql)
}

// skipQuoted returns the index just past the literal opened at i. A doubled
// quote stays inside the literal.
func skipQuoted(sql string, i int, quote byte, backslash bool) int {
	n := len(sql)
	for i++; i < n; i++ {
		switch {
		case backslash && sql[i] == '\\' && i+1 < n:
			i++
		case sql[i] == quote && i+1 < n && sql[i+1] == quote:
			i++
		case sql[i] == quote:
			return i + 1
		}
	}
	return n
}

// copyIdent writes the identifier opened at i unchanged and returns the index
// past it. Only "..." identifiers use doubling as an escape.
func copyIdent(out *strings.Builder, sql string, i int, open, close byte) int {
	n := len(sql)
	out.WriteByte(open)
	for i++; i < n; i++ {
		if sql[i] != close {
			out.WriteByte(sql[i])
			continue
		}
		if close == '"' && i+1 < n && sql[i+1] == '"' {
			out.WriteString(`""`)
			i++
			continue
		}
		out.WriteByte(close)
		return i + 1
	}
	return n
}

// dollarQuoteEnd returns the index past a $tag$...$tag$ string starting at i,
// or 0 when i does not open a terminated one.
func dollarQuoteEnd(sql string, i int) int {
	tagEnd := strings.IndexByte(sql[i+1:], '$')
	if tagEnd < 0 {
		return 0
	}
	tag := sql[i : i+tagEnd+2]
	closeIdx := strings.Index(sql[i+len(tag):], tag)
	if closeIdx < 0 {
		return 0
	}
	return i + len(tag) + closeIdx + len(tag)
}
