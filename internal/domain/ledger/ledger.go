// Package ledger implements the append-only snapshot history behind the
// outlier-removal workflow: strictly ordered full-table snapshots, an active
// pointer for point-in-time restoration, and linear-history truncation when
// new history is created after a restore.
package ledger

import (
	"fmt"
	"iter"
	"time"

	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/table"
)

// Ledger holds the ordered snapshots of one session. Sequence numbers are
// contiguous from 0 (the original table) and are never reordered. The ledger
// is not safe for concurrent use; the owning session serializes access.
type Ledger struct {
	snapshots []*Snapshot
	active    int
}

// New seeds a ledger with the original table as sequence 0.
func New(original *table.Table) *Ledger {
	l := &Ledger{}
	l.Reset(original)
	return l
}

// Reset clears all history and reseeds sequence 0 with a new original.
// Called only by the session lifecycle when a new file is installed.
func (l *Ledger) Reset(original *table.Table) {
	l.snapshots = []*Snapshot{{
		seq:       0,
		createdAt: time.Now(),
		tbl:       original.Clone(),
	}}
	l.active = 0
}

// Append creates the snapshot following the active one and advances the
// active pointer to it. When the active pointer is not at the tail (the
// session had restored to an earlier point), every snapshot after the active
// pointer is discarded first: history is linear, so appending after a
// restore destroys the branch the restore pointed away from.
func (l *Ledger) Append(targetColumn string, crit outlier.Criteria, resulting *table.Table, removedRows int) Meta {
	snap := &Snapshot{
		seq:          l.active + 1,
		createdAt:    time.Now(),
		targetColumn: targetColumn,
		criteria:     crit,
		removedRows:  removedRows,
		tbl:          resulting.Clone(),
	}
	l.snapshots = append(l.snapshots[:l.active+1], snap)
	l.active = snap.seq
	return l.meta(snap)
}

// Restore moves the active pointer to an existing snapshot. No snapshots are
// deleted; forward history survives until the next Append.
func (l *Ledger) Restore(seq int) error {
	if seq < 0 || seq >= len(l.snapshots) {
		return fmt.Errorf("%w: %d (ledger has 0..%d)", ErrInvalidSequence, seq, len(l.snapshots)-1)
	}
	l.active = seq
	return nil
}

// Active returns the active sequence number.
func (l *Ledger) Active() int {
	return l.active
}

// ActiveTable returns an independent copy of the table at the active
// sequence number.
func (l *Ledger) ActiveTable() *table.Table {
	return l.snapshots[l.active].Table()
}

// Len returns the number of snapshots, sequence 0 included.
func (l *Ledger) Len() int {
	return len(l.snapshots)
}

// Snapshot returns the snapshot at seq.
func (l *Ledger) Snapshot(seq int) (*Snapshot, error) {
	if seq < 0 || seq >= len(l.snapshots) {
		return nil, fmt.Errorf("%w: %d (ledger has 0..%d)", ErrInvalidSequence, seq, len(l.snapshots)-1)
	}
	return l.snapshots[seq], nil
}

// List yields snapshot metadata in ledger order without the table payloads.
// The sequence is restartable: each range over it walks the ledger again.
func (l *Ledger) List() iter.Seq[Meta] {
	return func(yield func(Meta) bool) {
		for _, snap := range l.snapshots {
			if !yield(l.meta(snap)) {
				return
			}
		}
	}
}

// Metas returns the materialized List output, oldest first.
func (l *Ledger) Metas() []Meta {
	out := make([]Meta, 0, len(l.snapshots))
	for m := range l.List() {
		out = append(out, m)
	}
	return out
}

func (l *Ledger) meta(snap *Snapshot) Meta {
	m := Meta{
		Seq:          snap.seq,
		CreatedAt:    snap.createdAt,
		TargetColumn: snap.targetColumn,
		RemovedRows:  snap.removedRows,
		Rows:         snap.tbl.Rows(),
		Active:       snap.seq == l.active,
	}
	if snap.seq > 0 {
		crit := snap.criteria
		m.Bounds = &crit
		m.Criteria = crit.Describe()
	}
	return m
}
