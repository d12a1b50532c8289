package ledger

import (
	"time"

	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/table"
)

// Snapshot is one immutable entry of the history ledger: the full table
// state after a removal operation, plus the metadata describing it.
// Sequence 0 is the original upload and carries no criteria.
type Snapshot struct {
	seq          int
	createdAt    time.Time
	targetColumn string
	criteria     outlier.Criteria
	removedRows  int
	tbl          *table.Table
}

// Seq returns the snapshot's position in the ledger.
func (s *Snapshot) Seq() int { return s.seq }

// CreatedAt returns when the operation ran.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Table returns an independent copy of the snapshot's table state.
func (s *Snapshot) Table() *table.Table { return s.tbl.Clone() }

// Meta is the display projection of a snapshot, without the table payload.
type Meta struct {
	Seq          int               `json:"seq"`
	CreatedAt    time.Time         `json:"created_at"`
	TargetColumn string            `json:"target_column,omitempty"`
	Criteria     string            `json:"criteria,omitempty"`
	RemovedRows  int               `json:"removed_rows"`
	Rows         int               `json:"rows"`
	Active       bool              `json:"active"`
	Bounds       *outlier.Criteria `json:"bounds,omitempty"`
}
