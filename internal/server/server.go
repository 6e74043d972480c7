package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/tutor-gateway/internal/auth"
	"github.com/tjfontaine/tutor-gateway/internal/config"
)

const defaultRequestTimeout = 60 * time.Second

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

func New(cfg config.ServerConfig, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.Handler(corsOptions(cfg.CORSOrigin)))
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "tutor-gateway")
	})
	r.Use(RateLimitNormalizingMiddleware)

	return &Server{
		Router: r,
		Port:   cfg.Port,
		logger: logger,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func corsOptions(origin string) cors.Options {
	origins := []string{"*"}
	if origin = strings.TrimSpace(origin); origin != "" && origin != "*" {
		origins = strings.Split(origin, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.HeaderProxyKey, "X-Request-ID"},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Retry-After",
			"x-ratelimit-limit-requests",
			"x-ratelimit-remaining-requests",
			"x-ratelimit-reset-requests",
		},
		MaxAge: 300,
	}
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
