package frontdoor

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/server"
)

// ErrorBody is the gateway error shape.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status and the {error, details} body and
// records it in the request log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	apiErr := domain.ToAPIError(err)
	writeJSON(w, apiErr.HTTPStatusCode(), ErrorBody{Error: apiErr.Message, Details: apiErr.Details})
}
