package frontdoor

import (
	"net/http"
	"time"
)

// HealthResponse reports liveness.
type HealthResponse struct {
	OK   bool  `json:"ok"`
	Time int64 `json:"time"`
}

// HandleHealth answers without auth or rate limiting.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true, Time: time.Now().UnixMilli()})
}
