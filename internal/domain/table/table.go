// Package table holds the in-memory tabular time-series model shared by the
// ledger, the selection engine and every read-only consumer. Tables have
// value semantics: ledger snapshots own full independent copies, and nothing
// handed outward aliases ledger-owned storage.
package table

import (
	"fmt"
	"math"
	"time"
)

// Table is an ordered sequence of rows indexed by timestamp, with named
// numeric columns. Missing values are represented as NaN.
type Table struct {
	index   []time.Time
	names   []string
	columns map[string][]float64
}

// New builds a table from a timestamp index and ordered numeric columns.
// It fails with ErrInvalidFormat when there are no rows, no numeric columns,
// mismatched column lengths, or a non-monotonic index.
func New(index []time.Time, names []string, columns map[string][]float64) (*Table, error) {
	if len(index) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidFormat)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no numeric columns", ErrInvalidFormat)
	}
	for _, name := range names {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing values for column %q", ErrInvalidFormat, name)
		}
		if len(col) != len(index) {
			return nil, fmt.Errorf("%w: column %q has %d values for %d rows",
				ErrInvalidFormat, name, len(col), len(index))
		}
	}
	for i := 1; i < len(index); i++ {
		if index[i].Before(index[i-1]) {
			return nil, fmt.Errorf("%w: timestamp index not monotonic at row %d", ErrInvalidFormat, i)
		}
	}

	t := &Table{
		index:   make([]time.Time, len(index)),
		names:   make([]string, len(names)),
		columns: make(map[string][]float64, len(names)),
	}
	copy(t.index, index)
	copy(t.names, names)
	for _, name := range names {
		vals := make([]float64, len(index))
		copy(vals, columns[name])
		t.columns[name] = vals
	}
	return t, nil
}

// Rows returns the row count.
func (t *Table) Rows() int {
	return len(t.index)
}

// ColumnNames returns the ordered numeric column names.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// HasColumn reports whether the named numeric column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// Value returns the cell at the given row for the named column.
func (t *Table) Value(row int, name string) (float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return col[row], nil
}

// Index returns a copy of the timestamp index.
func (t *Table) Index() []time.Time {
	out := make([]time.Time, len(t.index))
	copy(out, t.index)
	return out
}

// Timestamp returns the index value for a row.
func (t *Table) Timestamp(row int) time.Time {
	return t.index[row]
}

// TimeRange returns the first and last index timestamps.
func (t *Table) TimeRange() (time.Time, time.Time) {
	return t.index[0], t.index[len(t.index)-1]
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	clone, err := New(t.index, t.names, t.columns)
	if err != nil {
		// A constructed table always revalidates cleanly.
		panic(fmt.Sprintf("table: clone of valid table failed: %v", err))
	}
	return clone
}

// FilterRows returns a new table keeping only rows where keep[i] is true,
// preserving row order.
func (t *Table) FilterRows(keep []bool) (*Table, error) {
	if len(keep) != len(t.index) {
		return nil, fmt.Errorf("keep mask has %d entries for %d rows", len(keep), len(t.index))
	}
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	if kept == 0 {
		return nil, fmt.Errorf("%w: filter keeps no rows", ErrInvalidFormat)
	}

	index := make([]time.Time, 0, kept)
	columns := make(map[string][]float64, len(t.names))
	for _, name := range t.names {
		columns[name] = make([]float64, 0, kept)
	}
	for i, k := range keep {
		if !k {
			continue
		}
		index = append(index, t.index[i])
		for _, name := range t.names {
			columns[name] = append(columns[name], t.columns[name][i])
		}
	}
	return New(index, t.names, columns)
}

// Missing returns how many cells of the named column are NaN.
func (t *Table) Missing(name string) (int, error) {
	col, ok := t.columns[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	n := 0
	for _, v := range col {
		if math.IsNaN(v) {
			n++
		}
	}
	return n, nil
}

// Info returns display metadata for the table.
func (t *Table) Info() Info {
	start, end := t.TimeRange()
	cols := make([]Column, 0, len(t.names)+1)
	cols = append(cols, Column{Name: "timestamp", Type: TypeTimestamp})
	missing := make(map[string]int, len(t.names))
	for _, name := range t.names {
		cols = append(cols, Column{Name: name, Type: TypeNumeric})
		n, _ := t.Missing(name)
		if n > 0 {
			missing[name] = n
		}
	}
	if len(missing) == 0 {
		missing = nil
	}
	return Info{
		Rows:      len(t.index),
		Columns:   cols,
		Start:     start,
		End:       end,
		MissingBy: missing,
	}
}

// Equal reports whether two tables have identical schema, index and values.
// NaN cells compare equal to NaN cells.
func (t *Table) Equal(other *Table) bool {
	if other == nil || len(t.index) != len(other.index) || len(t.names) != len(other.names) {
		return false
	}
	for i := range t.names {
		if t.names[i] != other.names[i] {
			return false
		}
	}
	for i := range t.index {
		if !t.index[i].Equal(other.index[i]) {
			return false
		}
	}
	for _, name := range t.names {
		a, b := t.columns[name], other.columns[name]
		for i := range a {
			if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
				continue
			}
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}
