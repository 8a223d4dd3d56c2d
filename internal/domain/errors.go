package domain

import (
	"fmt"
	"strings"
)

// The error taxonomy shared by the import, store, and export paths. Each type
// carries enough context for the HTTP layer to pick a status and message,
// and wraps its cause for errors.Is / errors.As inspection.

// ValidationError reports malformed single-record input. Nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ValidationErrors groups several field failures.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// UnsupportedFormatError reports an upload or export format that is not csv
// or spreadsheet. No work is performed.
type UnsupportedFormatError struct {
	Name string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: only CSV or Excel (.csv, .xlsx, .xls) are supported", e.Name)
}

// ParseError reports file content that cannot be read as its declared format.
type ParseError struct {
	Format string
	Line   int // 1-based source line/row, 0 when unknown
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

// Unwrap returns the underlying parser error.
func (e *ParseError) Unwrap() error { return e.Err }

// StorageError reports that the store was unreachable or rejected a write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// PartialImportError reports a non-atomic bulk import that failed after
// Written of Total rows had already been committed.
type PartialImportError struct {
	Written int
	Total   int
	Err     error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import stopped after %d of %d rows: %v", e.Written, e.Total, e.Err)
}

// Unwrap returns the error that stopped the import.
func (e *PartialImportError) Unwrap() error { return e.Err }
