package session

import "time"

// State represents the lifecycle state of a session.
type State string

const (
	// StateEmpty means no data has been loaded yet.
	StateEmpty State = "empty"
	// StateActive means data is loaded and the ledger is live.
	StateActive State = "active"
)

// Info summarizes a session for listing.
type Info struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Snapshots    int       `json:"snapshots"`
	ActiveSeq    int       `json:"active_seq"`
}
