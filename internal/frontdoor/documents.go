package frontdoor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/markup"
	"github.com/tjfontaine/tutor-gateway/internal/policy"
	"github.com/tjfontaine/tutor-gateway/internal/server"
	"github.com/tjfontaine/tutor-gateway/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	pdfExt           = ".pdf"
)

// Compiler turns Typst source into a stored artifact.
type Compiler interface {
	Compile(ctx context.Context, title, markup string) (*domain.Artifact, error)
}

// DocumentResponse is the body of a successful compilation.
type DocumentResponse struct {
	Success  bool   `json:"success"`
	PDFURL   string `json:"pdfUrl"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

// DocumentError is the body of a failed compilation.
type DocumentError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DocumentList is the body of the listing endpoint.
type DocumentList struct {
	Documents []*domain.Artifact `json:"documents"`
}

// DocumentsConfig wires a DocumentsHandler.
type DocumentsConfig struct {
	Compiler     Compiler
	Limiter      policy.Limiter
	Store        storage.ArtifactStore // optional
	OutputDir    string
	Markup       markup.Options
	MaxBodyBytes int64
}

// DocumentsHandler serves compilation, download and listing.
type DocumentsHandler struct {
	cfg    DocumentsConfig
	logger *slog.Logger
}

func NewDocumentsHandler(cfg DocumentsConfig, logger *slog.Logger) *DocumentsHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 100 * 1024
	}
	return &DocumentsHandler{cfg: cfg, logger: logger}
}

func (h *DocumentsHandler) HandleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Limiter != nil {
		decision := h.cfg.Limiter.Admit()
		server.SetRateLimits(r.Context(), server.RateLimitInfoFromDecision(decision))
		if !decision.Allowed {
			h.fail(w, r, domain.ErrRateLimit("rate limit exceeded, try again later", decision.RetryAfter))
			return
		}
	}

	var spec domain.DocumentSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err := dec.Decode(&spec); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, domain.ErrInvalidRequest("request body exceeds "+strconv.FormatInt(maxErr.Limit, 10)+" bytes"))
			return
		}
		h.fail(w, r, domain.ErrInvalidRequest("invalid JSON body").WithCause(err))
		return
	}

	if strings.TrimSpace(spec.Title) == "" || strings.TrimSpace(spec.Content) == "" {
		h.fail(w, r, domain.ErrInvalidRequest("title and content are required"))
		return
	}

	source := markup.Render(spec, h.cfg.Markup)
	artifact, err := h.cfg.Compiler.Compile(r.Context(), spec.Title, source)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "pdf_file", artifact.FileName)
	writeJSON(w, http.StatusOK, DocumentResponse{
		Success:  true,
		PDFURL:   artifact.URL,
		FileName: artifact.FileName,
		Size:     artifact.Size,
	})
}

// fail writes the {success:false} body. Validation and rate limit errors
// keep their status; every other failure is a 500.
func (h *DocumentsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	apiErr := domain.ToAPIError(err)

	status := apiErr.HTTPStatusCode()
	if status != http.StatusBadRequest && status != http.StatusTooManyRequests {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, DocumentError{Error: apiErr.Message, Details: apiErr.Details})
}

// HandleDownload serves a compiled PDF by base name.
func (h *DocumentsHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !downloadable(name) {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(h.cfg.OutputDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func downloadable(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return false
	}
	return strings.HasSuffix(name, pdfExt)
}

// HandleList returns recent artifacts from the ledger, newest first.
func (h *DocumentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, domain.ErrInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	if h.cfg.Store == nil {
		writeJSON(w, http.StatusOK, DocumentList{Documents: []*domain.Artifact{}})
		return
	}

	docs, err := h.cfg.Store.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, domain.ErrServer("failed to list documents").WithCause(err))
		return
	}
	if docs == nil {
		docs = []*domain.Artifact{}
	}
	writeJSON(w, http.StatusOK, DocumentList{Documents: docs})
}
