package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware enforces bearer token authentication against a single
// configured token. The health endpoint is mounted outside this middleware.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			presented := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if presented == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: APIError{
					Code:         "UNAUTHORIZED",
					Message:      "missing bearer token",
					RecoveryHint: "Send Authorization: Bearer <token>",
				}})
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid bearer token",
				}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
