package table

import "time"

// ColumnType declares how a column is interpreted.
type ColumnType string

const (
	// TypeTimestamp marks the index column.
	TypeTimestamp ColumnType = "timestamp"
	// TypeNumeric marks a float64 value column.
	TypeNumeric ColumnType = "numeric"
)

// Column describes one named, typed column of a table schema.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Info summarizes a table for display without exposing its payload.
type Info struct {
	Rows      int            `json:"rows"`
	Columns   []Column       `json:"columns"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	MissingBy map[string]int `json:"missing_by_column,omitempty"`
}
