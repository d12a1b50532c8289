package outlier

import (
	"fmt"
	"strings"
	"time"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// Method identifies how removal bounds were chosen.
type Method string

const (
	// MethodRange removes rows inside explicit time/value bounds.
	MethodRange Method = "range"
	// MethodIQR removes rows outside Q1-k*IQR .. Q3+k*IQR.
	MethodIQR Method = "iqr"
	// MethodZScore removes rows outside mean +/- k*std.
	MethodZScore Method = "zscore"
)

// TimeRange is an inclusive window on the timestamp index.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ValueRange is an inclusive window on a column's values.
type ValueRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Criteria records the bounds one removal operation was built from. For
// statistical methods the value range holds the computed bounds, so history
// entries stay self-describing.
type Criteria struct {
	Method     Method      `json:"method"`
	Time       *TimeRange  `json:"time_range,omitempty"`
	Value      *ValueRange `json:"value_range,omitempty"`
	Multiplier float64     `json:"multiplier,omitempty"`
}

// Describe renders the criteria for history display.
func (c Criteria) Describe() string {
	switch c.Method {
	case MethodIQR:
		return fmt.Sprintf("IQR method (k=%.2g, kept %.4g..%.4g)", c.Multiplier, c.Value.Lower, c.Value.Upper)
	case MethodZScore:
		return fmt.Sprintf("z-score method (k=%.2g, kept %.4g..%.4g)", c.Multiplier, c.Value.Lower, c.Value.Upper)
	default:
		var parts []string
		if c.Time != nil {
			parts = append(parts, fmt.Sprintf("time %s..%s",
				c.Time.Start.Format(time.RFC3339), c.Time.End.Format(time.RFC3339)))
		}
		if c.Value != nil {
			parts = append(parts, fmt.Sprintf("value %.4g..%.4g", c.Value.Lower, c.Value.Upper))
		}
		return "range (" + strings.Join(parts, ", ") + ")"
	}
}

// Selection is the outcome of computing a removal candidate. Nothing is
// committed until the caller appends the candidate table to the ledger.
type Selection struct {
	// Table is the candidate table with the selected rows dropped.
	Table *table.Table
	// Removed is how many rows the selection excludes.
	Removed int
	// Mask flags, per input row, whether that row is selected for removal.
	Mask []bool
	// Criteria echoes the bounds used, with statistical bounds filled in.
	Criteria Criteria
}
