package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/tutor-gateway/internal/auth"
	"github.com/tjfontaine/tutor-gateway/internal/compiler"
	"github.com/tjfontaine/tutor-gateway/internal/config"
	"github.com/tjfontaine/tutor-gateway/internal/frontdoor"
	"github.com/tjfontaine/tutor-gateway/internal/gateway"
	"github.com/tjfontaine/tutor-gateway/internal/markup"
	"github.com/tjfontaine/tutor-gateway/internal/policy"
	"github.com/tjfontaine/tutor-gateway/internal/retention"
	"github.com/tjfontaine/tutor-gateway/internal/router"
	"github.com/tjfontaine/tutor-gateway/internal/server"
	"github.com/tjfontaine/tutor-gateway/internal/storage"
	"github.com/tjfontaine/tutor-gateway/internal/storage/memory"
	"github.com/tjfontaine/tutor-gateway/internal/storage/sqlite"
	"github.com/tjfontaine/tutor-gateway/internal/telemetry"
	"github.com/tjfontaine/tutor-gateway/internal/tokens"
)

const serviceName = "tutor-gateway"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("tracing unavailable", slog.String("error", err.Error()))
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	authn := newAuthenticator(cfg.Auth, logger)
	limiter := policy.NewFixedWindow(cfg.RateLimit.Window(), cfg.RateLimit.Max)

	validatorOpts := []gateway.ValidatorOption{gateway.WithMaxBodyBytes(cfg.Server.MaxBodyBytes)}
	if cfg.Limits.MaxPromptTokens > 0 {
		counter, err := tokens.NewCounter(cfg.Limits.TokenCounter)
		if err != nil {
			logger.Warn("falling back to estimated token counts", slog.String("error", err.Error()))
			counter = tokens.NewEstimator()
		}
		validatorOpts = append(validatorOpts, gateway.WithPromptBudget(counter, cfg.Limits.MaxPromptTokens))
	}

	dispatcher := gateway.NewDispatcher(
		authn,
		gateway.NewValidator(validatorOpts...),
		limiter,
		router.RulesFromConfig(cfg),
		router.RegistryFromConfig(cfg, logger),
		logger,
	)

	store := openStoreOrMemory(cfg.Storage, logger)
	defer store.Close()

	invoker := compiler.New(compiler.ConfigFromDocuments(cfg.Documents), logger, compiler.WithRecorder(store))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if version, err := invoker.Probe(ctx); err != nil {
		logger.Warn("typesetting compiler unavailable; document generation will fail",
			slog.String("bin", cfg.Documents.CompilerBin),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("typesetting compiler found", slog.String("version", version))
	}

	srv := server.New(cfg.Server, logger)
	frontdoor.Mount(srv.Router,
		frontdoor.NewGenerateHandler(dispatcher, logger),
		frontdoor.NewDocumentsHandler(frontdoor.DocumentsConfig{
			Compiler:     invoker,
			Limiter:      limiter,
			Store:        store,
			OutputDir:    invoker.OutputDir(),
			Markup:       markup.Options{Author: cfg.Documents.Author, Lang: cfg.Documents.Lang},
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}, logger),
		authn,
		cfg.Documents.DownloadPrefix,
	)

	janitor := retention.NewJanitor(
		invoker.OutputDir(),
		[]string{compiler.OutputExt, invoker.SourceExt()},
		cfg.Documents.Retention,
		cfg.Documents.SweepInterval,
		store,
		logger,
	)
	go janitor.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, stopping server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("Server shutdown complete")
}

func newAuthenticator(cfg config.AuthConfig, logger *slog.Logger) *auth.Authenticator {
	if cfg.Disabled {
		logger.Warn("authentication disabled; every caller is admitted")
		return auth.Disabled()
	}
	a := auth.NewAuthenticator(cfg.ProxyKey, cfg.ProxyKeyHash)
	if !a.Configured() {
		logger.Warn("no proxy key configured; generation requests will be rejected")
	}
	return a
}

// openStoreOrMemory falls back to the in-memory ledger so a bad storage
// path never keeps the service from starting.
func openStoreOrMemory(cfg config.StorageConfig, logger *slog.Logger) storage.ArtifactStore {
	store, err := openStore(cfg)
	if err != nil {
		logger.Warn("artifact store unavailable; using in-memory ledger",
			slog.String("type", cfg.Type),
			slog.String("path", cfg.SQLite.Path),
			slog.String("error", err.Error()),
		)
		return memory.New()
	}
	return store
}

func openStore(cfg config.StorageConfig) (storage.ArtifactStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory":
		return memory.New(), nil
	case "", "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.New(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
