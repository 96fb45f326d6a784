package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownColumn is returned when an operation names a column the table does not have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateColumn is returned when a new column would collide with an existing name.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrEmptyDomain is returned by Pivot when no bucket values are supplied.
	ErrEmptyDomain = errors.New("empty bucket domain")
	// ErrInvalidTimestamp marks a value that cannot be read as a calendar instant.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrTypeMismatch is returned when a column's type cannot serve the requested operation.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrLengthMismatch is returned when a mask or column does not match the table's row count.
	ErrLengthMismatch = errors.New("length mismatch")
)

// ColumnError reports a structural failure tied to one column.
type ColumnError struct {
	Op     string
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: column %q: %v", e.Op, e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// TimestampError carries the raw value that failed to parse.
type TimestampError struct {
	Value string
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidTimestamp, e.Value)
}

func (e *TimestampError) Unwrap() error { return ErrInvalidTimestamp }

func unknownColumn(op, name string) error {
	return &ColumnError{Op: op, Column: name, Err: ErrUnknownColumn}
}

func duplicateColumn(op, name string) error {
	return &ColumnError{Op: op, Column: name, Err: ErrDuplicateColumn}
}

func typeMismatch(op, name string, format string, args ...interface{}) error {
	return &ColumnError{Op: op, Column: name, Err: fmt.Errorf("%w: "+format, append([]interface{}{ErrTypeMismatch}, args...)...)}
}
