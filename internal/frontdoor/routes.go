package frontdoor

import (
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/tutor-gateway/internal/auth"
	"github.com/tjfontaine/tutor-gateway/internal/server"
)

// Mount registers every endpoint. downloadPrefix is the path compiled
// artifacts are served under, e.g. "/download".
func Mount(r chi.Router, gen *GenerateHandler, docs *DocumentsHandler, authn *auth.Authenticator, downloadPrefix string) {
	r.Get("/health", HandleHealth)

	r.Post("/generate", gen.HandleGenerate)
	r.Post("/api/ai", gen.HandleGenerate)

	r.Post("/generate-pdf", docs.HandleGeneratePDF)
	r.Post("/api/generate-pdf", docs.HandleGeneratePDF)

	prefix := "/" + strings.Trim(downloadPrefix, "/")
	if prefix == "/" {
		prefix = "/download"
	}
	r.Get(prefix+"/{name}", docs.HandleDownload)

	r.With(server.AuthMiddleware(authn)).Get("/documents", docs.HandleList)
}
