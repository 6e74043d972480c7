// Package frontdoor exposes the gateway and the document pipeline over HTTP.
package frontdoor

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tjfontaine/tutor-gateway/internal/auth"
	"github.com/tjfontaine/tutor-gateway/internal/gateway"
	"github.com/tjfontaine/tutor-gateway/internal/server"
)

// GenerateHandler serves the text generation endpoint.
type GenerateHandler struct {
	dispatcher *gateway.Dispatcher
	logger     *slog.Logger
}

func NewGenerateHandler(dispatcher *gateway.Dispatcher, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{dispatcher: dispatcher, logger: logger}
}

func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	res, err := h.dispatcher.Dispatch(r.Context(), auth.ExtractSecret(r), r.Body)

	if res != nil {
		if res.Decision != nil {
			server.SetRateLimits(r.Context(), server.RateLimitInfoFromDecision(*res.Decision))
		}
		server.AddLogField(r.Context(), "provider", string(res.Route.Kind))
		server.AddLogField(r.Context(), "model", res.Route.Model)
		if res.PromptTokens > 0 {
			server.AddLogField(r.Context(), "prompt_tokens", strconv.Itoa(res.PromptTokens))
		}
	}

	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res.Envelope)
}
