package outlier

import "errors"

var (
	// ErrInvalidRange indicates malformed selection bounds.
	ErrInvalidRange = errors.New("invalid selection range")
	// ErrEmptySelection indicates the criteria matched zero rows. Recoverable:
	// the caller corrects the bounds and retries, no history entry is made.
	ErrEmptySelection = errors.New("selection matched no rows")
	// ErrColumnNotFound indicates the target column is not in the table.
	ErrColumnNotFound = errors.New("target column not found")
	// ErrUnknownMethod indicates an unsupported statistical method.
	ErrUnknownMethod = errors.New("unknown outlier method")
)
