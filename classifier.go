package main

import (
	"fmt"
	"strings"
)

// Intent is the caller-declared kind of a statement.
type Intent int

const (
	IntentRead Intent = iota
	IntentWrite
)

func (i Intent) String() string {
	if i == IntentWrite {
		return "write"
	}
	return "read"
}

var (
	readPrefixes    = []string{"SELECT", "PRAGMA", "EXPLAIN"}
	forbiddenWrites = []string{"DROP", "ALTER", "CREATE"}
)

// Classifier decides whether a statement may run for a given intent. It only
// looks at the leading keyword. In strict mode string literals and comments
// are stripped first and chained statements are rejected.
type Classifier struct {
	strict bool
	strip  func(string) string
}

// NewClassifier returns a prefix-only classifier. When strict is true the
// adapter's stripper is used to look past comments and catch chaining.
func NewClassifier(adapter DBAdapter, strict bool) *Classifier {
	c := &Classifier{strict: strict}
	if strict && adapter != nil {
		c.strip = adapter.RemoveStringsAndComments
	}
	return c
}

// Classify returns nil when the statement is allowed, or a *PolicyError.
// The statement itself is never modified.
func (c *Classifier) Classify(statement string, intent Intent) error {
	text := statement
	if c.strict && c.strip != nil {
		text = c.strip(statement)
		if err := checkSingleStatement(text); err != nil {
			return err
		}
	}

	upper := strings.ToUpper(strings.TrimSpace(text))

	switch intent {
	case IntentRead:
		for _, prefix := range readPrefixes {
			if strings.HasPrefix(upper, prefix) {
				return nil
			}
		}
		return &PolicyError{
			Reason: "only read-only statement forms are allowed (SELECT, PRAGMA, EXPLAIN)",
		}
	case IntentWrite:
		for _, kw := range forbiddenWrites {
			if strings.HasPrefix(upper, kw) {
				return &PolicyError{
					Keyword: kw,
					Reason:  fmt.Sprintf("%s statements are not allowed for safety", kw),
				}
			}
		}
		return nil
	default:
		return &PolicyError{Reason: fmt.Sprintf("unknown statement intent %d", intent)}
	}
}

// checkSingleStatement expects cleaned SQL with strings and comments removed.
func checkSingleStatement(cleanedSQL string) error {
	if strings.Contains(cleanedSQL, ";") {
		parts := strings.SplitN(cleanedSQL, ";", 2)
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			return &PolicyError{Reason: "multiple statements are not allowed"}
		}
	}
	return nil
}
