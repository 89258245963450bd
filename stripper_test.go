package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripStringsAndComments(t *testing.T) {
	tests := []struct {
		name     string
		rules    stripRules
		input    string
		expected string
	}{
		{"unterminated block comment", stripRules{}, "SELECT 1 /* open", "SELECT 1  "},
		{"unterminated string", stripRules{}, "SELECT 'open", "SELECT ''"},
		{"doubled quote inside string", stripRules{}, "SELECT 'it''s; x'", "SELECT ''"},
		{"doubled quote inside identifier", stripRules{}, `SELECT "a""b" FROM t`, `SELECT "a""b" FROM t`},
		{"hash kept without hash comments", stripRules{}, "SELECT a #b", "SELECT a #b"},
		{"hash comment", stripRules{hashComments: true}, "SELECT a # DROP\nFROM t", "SELECT a  \nFROM t"},
		{"backslash escape", stripRules{backslashEscapes: true}, `SELECT 'a\'; b'`, "SELECT ''"},
		{"backslash is literal without escapes", stripRules{}, `SELECT 'a\'; b'`, "SELECT ''; b''"},
		{"double quotes as text", stripRules{doubleQuoteText: true}, `SELECT "DROP"`, `SELECT ""`},
		{"tagged dollar quote", stripRules{dollarQuotes: true}, "SELECT $fn$ a; b $fn$;", "SELECT '';"},
		{"lone dollar sign", stripRules{dollarQuotes: true}, "SELECT $1, 'x'", "SELECT $1, ''"},
		{"bracket identifier", stripRules{bracketIdents: true}, "SELECT [a'b] FROM t", "SELECT [a'b] FROM t"},
		{"bracket without bracket idents", stripRules{}, "SELECT [a'b] FROM t", "SELECT [a''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripStringsAndComments(tt.input, tt.rules))
		})
	}
}
