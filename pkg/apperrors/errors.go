package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrSchema               = errors.New("schema error")
	ErrUnsupportedOperation = errors.New("operation not supported by this dialect")
	ErrNoUpdatableColumns   = errors.New("no columns are being updated")
	ErrUnknownColumn        = errors.New("unknown column")
	ErrMissingKeyValue      = errors.New("missing key value")
	ErrUnboundParameter     = errors.New("unbound parameter")
	ErrSuspiciousValue      = errors.New("potential SQL injection detected in parameter value")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// SchemaError reports a table that could not be resolved or a catalog query
// that failed. It matches both ErrSchema and the underlying cause.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("schema: %v", e.Err)
	}
	return fmt.Sprintf("schema: table %q: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSchema}
	}
	return []error{ErrSchema, e.Err}
}

// NewSchemaError wraps err as a SchemaError for table.
func NewSchemaError(table string, err error) *SchemaError {
	return &SchemaError{Table: table, Err: err}
}

// UnsupportedOperationError names a DDL operation a dialect cannot express.
type UnsupportedOperationError struct {
	Dialect   string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s is not supported by the %s dialect", e.Operation, e.Dialect)
}

func (e *UnsupportedOperationError) Unwrap() error { return ErrUnsupportedOperation }

// NoUpdatableColumnsError is returned when an UPDATE would have an empty SET list.
type NoUpdatableColumnsError struct {
	Table string
}

func (e *NoUpdatableColumnsError) Error() string {
	return fmt.Sprintf("no columns are being updated for table %q", e.Table)
}

func (e *NoUpdatableColumnsError) Unwrap() error { return ErrNoUpdatableColumns }

// UnknownColumnError is returned when a key condition names a column the table does not have.
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("table %q does not have a column named %q", e.Table, e.Column)
}

func (e *UnknownColumnError) Unwrap() error { return ErrUnknownColumn }

// MissingKeyValueError is returned when a composite key tuple omits one of its columns.
type MissingKeyValueError struct {
	Table  string
	Column string
}

func (e *MissingKeyValueError) Error() string {
	return fmt.Sprintf("the value for the column %q is not supplied when querying the table %q", e.Column, e.Table)
}

func (e *MissingKeyValueError) Unwrap() error { return ErrMissingKeyValue }
