package main

import (
	"errors"
	"fmt"
)

// Error kinds reported to MCP clients in the "kind" field of a tool error.
const (
	KindPolicyRejection = "policy_rejection"
	KindStorage         = "storage_error"
	KindPartialFailure  = "partial_failure"
	KindIO              = "io_error"
	KindInvalidParams   = "invalid_params"
)

// PolicyError is returned when the classifier blocks a statement before it
// reaches the database.
type PolicyError struct {
	Keyword string
	Reason  string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// StorageError wraps a failure reported by the database engine.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IOError is returned when the dump destination cannot be created or written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParamError reports a missing or malformed tool argument.
type ParamError struct {
	Name    string
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid '%s' parameter: %s", e.Name, e.Message)
}

func errorKind(err error) string {
	var policyErr *PolicyError
	var ioErr *IOError
	var paramErr *ParamError

	switch {
	case errors.As(err, &policyErr):
		return KindPolicyRejection
	case errors.As(err, &ioErr):
		return KindIO
	case errors.As(err, &paramErr):
		return KindInvalidParams
	default:
		return KindStorage
	}
}
