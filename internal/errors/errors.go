// Package errors defines the pipeline's error taxonomy. File- and
// edge-level problems are aggregated into the run report; only
// configuration and store-level failures propagate.
package errors

import (
	"errors"
	"fmt"
)

// ConfigurationError is fatal: it aborts the run before any processing.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
	}
	return "configuration error: " + e.Msg
}

// NewConfiguration builds a ConfigurationError for a field.
func NewConfiguration(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ParseError is recoverable and scoped to one file: the file is skipped,
// its prior graph state retained, and the batch continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParse wraps a per-file parsing failure.
func NewParse(path string, err error) *ParseError {
	return &ParseError{Path: path, Err: err}
}

// WriteError is a graph-store write failure. Transient errors are retried
// with backoff; once retries are exhausted the generation is marked
// partially failed.
type WriteError struct {
	Batch     string
	Attempts  int
	Transient bool
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewWrite wraps a store write failure.
func NewWrite(batch string, attempts int, transient bool, err error) *WriteError {
	return &WriteError{Batch: batch, Attempts: attempts, Transient: transient, Err: err}
}

// AsWrite unwraps err into target if it is (or wraps) a WriteError.
func AsWrite(err error, target **WriteError) bool {
	return errors.As(err, target)
}
