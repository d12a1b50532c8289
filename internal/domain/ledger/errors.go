package ledger

import "errors"

// ErrInvalidSequence indicates a restore target that does not exist in the
// ledger.
var ErrInvalidSequence = errors.New("sequence number not in ledger")
