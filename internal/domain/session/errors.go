package session

import "errors"

var (
	// ErrNoDataLoaded indicates an operation ran before any upload.
	ErrNoDataLoaded = errors.New("no data loaded")
	// ErrSessionNotFound indicates the session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
)
