package table

import "errors"

var (
	// ErrInvalidFormat indicates the table has no usable timestamp index or
	// no numeric columns.
	ErrInvalidFormat = errors.New("invalid table format")
	// ErrColumnNotFound indicates the named column is not in the schema.
	ErrColumnNotFound = errors.New("column not found")
)
