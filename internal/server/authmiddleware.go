package server

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/tutor-gateway/internal/auth"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
)

// AuthMiddleware rejects requests that do not carry the shared secret.
// The secret is read from X-Proxy-Key or a Bearer Authorization header.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authenticator.Validate(auth.ExtractSecret(r)); err != nil {
				AddError(r.Context(), err)
				apiErr := domain.ToAPIError(err)
				writeJSONError(w, apiErr.HTTPStatusCode(), apiErr.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
