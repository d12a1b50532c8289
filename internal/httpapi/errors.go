package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okabe/seriescrub/internal/domain/ledger"
	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/session"
	"github.com/okabe/seriescrub/internal/domain/table"
)

// APIError is the JSON error body returned to the interactive caller. The
// message carries the offending column, bounds or sequence number so the
// caller can correct the input.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// mapError maps domain errors to an HTTP status and error body.
func mapError(err error) (int, APIError) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, APIError{
			Code: "SESSION_NOT_FOUND", Message: err.Error(),
			RecoveryHint: "Create a session with POST /sessions",
		}
	case errors.Is(err, session.ErrNoDataLoaded):
		return http.StatusConflict, APIError{
			Code: "NO_DATA_LOADED", Message: err.Error(),
			RecoveryHint: "Upload a file first",
		}
	case errors.Is(err, table.ErrInvalidFormat):
		return http.StatusBadRequest, APIError{
			Code: "INVALID_FORMAT", Message: err.Error(),
			RecoveryHint: "Provide a CSV with a timestamp index column and numeric value columns",
		}
	case errors.Is(err, ledger.ErrInvalidSequence):
		return http.StatusNotFound, APIError{
			Code: "INVALID_SEQUENCE", Message: err.Error(),
			RecoveryHint: "List history to see valid sequence numbers",
		}
	case errors.Is(err, outlier.ErrEmptySelection):
		// Recoverable no-op: nothing was appended to the ledger.
		return http.StatusUnprocessableEntity, APIError{
			Code: "EMPTY_SELECTION", Message: err.Error(),
			RecoveryHint: "Widen the bounds; no history entry was created",
		}
	case errors.Is(err, outlier.ErrInvalidRange):
		return http.StatusBadRequest, APIError{
			Code: "INVALID_RANGE", Message: err.Error(),
			RecoveryHint: "Start must not exceed end, lower must not exceed upper",
		}
	case errors.Is(err, outlier.ErrColumnNotFound), errors.Is(err, table.ErrColumnNotFound):
		return http.StatusNotFound, APIError{
			Code: "COLUMN_NOT_FOUND", Message: err.Error(),
			RecoveryHint: "Check the column list in the data info",
		}
	case errors.Is(err, outlier.ErrUnknownMethod):
		return http.StatusBadRequest, APIError{
			Code: "UNKNOWN_METHOD", Message: err.Error(),
			RecoveryHint: "Use method \"iqr\" or \"zscore\"",
		}
	default:
		return http.StatusInternalServerError, APIError{
			Code: "INTERNAL", Message: err.Error(),
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := mapError(err)
	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
