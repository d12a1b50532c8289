// Package session owns the lifecycle of one analyst's working state: the
// uploaded original table, the snapshot history ledger and the active
// pointer. A Manager hands out isolated sessions so independent users never
// share mutable state.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okabe/seriescrub/internal/domain/ledger"
	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/table"
)

// Session is the single owner of one ledger and its original table. All
// mutation flows through Upload, Remove and Restore; each call runs to
// completion under the session mutex, so a failed operation leaves the
// ledger exactly as it was.
type Session struct {
	id      string
	logger  *slog.Logger
	created time.Time

	mu           sync.Mutex
	ledger       *ledger.Ledger
	lastActivity time.Time
}

// NewSession creates an empty session.
func NewSession(id string, logger *slog.Logger) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		logger:       logger,
		created:      now,
		lastActivity: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State reports whether data is loaded.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return StateEmpty
	}
	return StateActive
}

// Upload installs a new original table. Any previous ledger is discarded
// entirely; reloading is the same transition as the first load.
func (s *Session) Upload(original *table.Table) error {
	if original == nil {
		return table.ErrInvalidFormat
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger == nil {
		s.ledger = ledger.New(original)
	} else {
		s.ledger.Reset(original)
	}
	s.touch()
	s.logger.Info("data loaded",
		"session", s.id,
		"rows", original.Rows(),
		"columns", len(original.ColumnNames()))
	return nil
}

// Current returns an independent copy of the table at the active sequence
// number.
func (s *Session) Current() (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil, ErrNoDataLoaded
	}
	return s.ledger.ActiveTable(), nil
}

// Original returns an independent copy of the sequence 0 table.
func (s *Session) Original() (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil, ErrNoDataLoaded
	}
	snap, err := s.ledger.Snapshot(0)
	if err != nil {
		return nil, err
	}
	return snap.Table(), nil
}

// Preview computes a removal candidate against the active table without
// committing anything.
func (s *Session) Preview(column string, crit outlier.Criteria) (*outlier.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil, ErrNoDataLoaded
	}
	return outlier.Select(s.ledger.ActiveTable(), column, crit)
}

// Remove selects rows by explicit bounds and commits the result as a new
// snapshot. When the active pointer is behind the tail, forward history is
// truncated by the append.
func (s *Session) Remove(column string, crit outlier.Criteria) (ledger.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(column, func(t *table.Table) (*outlier.Selection, error) {
		return outlier.Select(t, column, crit)
	})
}

// RemoveStatistical selects rows outside IQR or z-score bounds and commits
// the result as a new snapshot.
func (s *Session) RemoveStatistical(column string, method outlier.Method, multiplier float64) (ledger.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(column, func(t *table.Table) (*outlier.Selection, error) {
		return outlier.SelectStatistical(t, column, method, multiplier)
	})
}

func (s *Session) removeLocked(column string, selectFn func(*table.Table) (*outlier.Selection, error)) (ledger.Meta, error) {
	if s.ledger == nil {
		return ledger.Meta{}, ErrNoDataLoaded
	}
	sel, err := selectFn(s.ledger.ActiveTable())
	if err != nil {
		return ledger.Meta{}, fmt.Errorf("selecting outliers in %q: %w", column, err)
	}
	meta := s.ledger.Append(column, sel.Criteria, sel.Table, sel.Removed)
	s.touch()
	s.logger.Info("outliers removed",
		"session", s.id,
		"seq", meta.Seq,
		"column", column,
		"removed", meta.RemovedRows,
		"rows", meta.Rows)
	return meta, nil
}

// Restore moves the active pointer to a past snapshot. Forward history is
// kept until the next Remove.
func (s *Session) Restore(seq int) (ledger.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return ledger.Meta{}, ErrNoDataLoaded
	}
	if err := s.ledger.Restore(seq); err != nil {
		return ledger.Meta{}, err
	}
	s.touch()
	s.logger.Info("restored snapshot", "session", s.id, "seq", seq)
	for m := range s.ledger.List() {
		if m.Seq == seq {
			return m, nil
		}
	}
	return ledger.Meta{}, fmt.Errorf("%w: %d", ledger.ErrInvalidSequence, seq)
}

// History returns ledger metadata, oldest first.
func (s *Session) History() ([]ledger.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil, ErrNoDataLoaded
	}
	return s.ledger.Metas(), nil
}

// Info returns the session summary.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:           s.id,
		State:        StateEmpty,
		CreatedAt:    s.created,
		LastActivity: s.lastActivity,
	}
	if s.ledger != nil {
		info.State = StateActive
		info.Snapshots = s.ledger.Len()
		info.ActiveSeq = s.ledger.Active()
	}
	return info
}

func (s *Session) touch() {
	s.lastActivity = time.Now()
}

// Manager is a registry of isolated sessions keyed by ID. Sessions are
// purely in-memory; a process restart starts over with an empty registry.
type Manager struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new empty session and returns it.
func (m *Manager) Create() *Session {
	sess := NewSession(uuid.NewString(), m.logger)
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()
	m.logger.Info("session created", "session", sess.ID())
	return sess
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Close removes a session from the registry.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	m.logger.Info("session closed", "session", id)
	return nil
}

// List returns summaries of all registered sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Info())
	}
	return out
}
