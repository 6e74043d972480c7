// Package compiler turns Typst source into PDF artifacts by running the
// external compiler as a bounded subprocess.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/config"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/tjfontaine/tutor-gateway/internal/compiler"

	// OutputExt is the extension of compiled artifacts.
	OutputExt = ".pdf"

	defaultBin            = "typst"
	defaultTimeout        = 30 * time.Second
	defaultSourceExt      = ".typ"
	defaultDownloadPrefix = "/download"
	probeTimeout          = 5 * time.Second
	waitDelay             = 2 * time.Second
	nameAttempts          = 5
	maxOutputBytes        = 4096
)

// Config controls where and how documents are compiled.
type Config struct {
	Bin            string
	OutputDir      string
	Timeout        time.Duration
	DownloadPrefix string
	SourceExt      string
}

// ConfigFromDocuments adapts the documents configuration section.
func ConfigFromDocuments(cfg config.DocumentsConfig) Config {
	return Config{
		Bin:            cfg.CompilerBin,
		OutputDir:      cfg.OutputDir,
		Timeout:        cfg.Timeout,
		DownloadPrefix: cfg.DownloadPrefix,
		SourceExt:      cfg.SourceExt,
	}
}

// Recorder receives every successfully compiled artifact.
type Recorder interface {
	Record(ctx context.Context, a *domain.Artifact) error
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithRecorder records compiled artifacts.
func WithRecorder(r Recorder) Option {
	return func(i *Invoker) {
		i.recorder = r
	}
}

// WithClock replaces time.Now for file naming.
func WithClock(now func() time.Time) Option {
	return func(i *Invoker) {
		i.now = now
	}
}

// Invoker compiles markup into artifacts. It holds no per-call state, so
// one Invoker serves concurrent requests.
type Invoker struct {
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	tracer   trace.Tracer
}

// New creates an invoker, filling unset configuration with defaults.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Invoker {
	if cfg.Bin == "" {
		cfg.Bin = defaultBin
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SourceExt == "" {
		cfg.SourceExt = defaultSourceExt
	}
	if !strings.HasPrefix(cfg.SourceExt, ".") {
		cfg.SourceExt = "." + cfg.SourceExt
	}
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = defaultDownloadPrefix
	}

	i := &Invoker{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// OutputDir returns the directory artifacts are written to.
func (i *Invoker) OutputDir() string {
	return i.cfg.OutputDir
}

// SourceExt returns the extension used for intermediate sources.
func (i *Invoker) SourceExt() string {
	return i.cfg.SourceExt
}

// Probe runs "<bin> --version" and returns its first output line.
func (i *Invoker) Probe(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, i.cfg.Bin, "--version")
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	if err != nil {
		e := domain.ErrToolchain(fmt.Sprintf("typesetting compiler %q is not available", i.cfg.Bin)).WithCause(err)
		if len(out) > 0 {
			return "", e.WithDetails(truncate(string(out)))
		}
		return "", e.WithDetails(err.Error())
	}

	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return version, nil
}

// Compile writes markup to a uniquely named source file, compiles it and
// returns the resulting artifact. The source file is always removed.
func (i *Invoker) Compile(ctx context.Context, title, markup string) (*domain.Artifact, error) {
	ctx, span := i.tracer.Start(ctx, "compiler.compile")
	defer span.End()

	artifact, err := i.compile(ctx, title, markup)
	if err != nil {
		apiErr := domain.ToAPIError(err)
		span.SetStatus(codes.Error, apiErr.Message)
		span.SetAttributes(attribute.String("error.type", string(apiErr.Type)))
		return nil, apiErr
	}

	span.SetAttributes(
		attribute.String("artifact.file", artifact.FileName),
		attribute.Int64("artifact.size", artifact.Size),
	)
	return artifact, nil
}

func (i *Invoker) compile(ctx context.Context, title, markup string) (*domain.Artifact, error) {
	if err := os.MkdirAll(i.cfg.OutputDir, 0o755); err != nil {
		return nil, domain.ErrFilesystem("failed to create output directory").WithDetails(err.Error()).WithCause(err)
	}

	if _, err := i.Probe(ctx); err != nil {
		return nil, err
	}

	name, src, err := i.createSource(title, markup)
	if err != nil {
		return nil, err
	}
	defer i.removeSource(ctx, src)

	out := filepath.Join(i.cfg.OutputDir, name+OutputExt)
	if err := i.run(ctx, src, out); err != nil {
		return nil, err
	}

	info, err := os.Stat(out)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrCompilation("compiler produced no output file")
		}
		return nil, domain.ErrFilesystem("failed to stat output file").WithDetails(err.Error()).WithCause(err)
	}
	if info.Size() == 0 {
		os.Remove(out)
		return nil, domain.ErrCompilation("compiler produced an empty output file")
	}

	fileName := name + OutputExt
	artifact := &domain.Artifact{
		Title:      title,
		FileName:   fileName,
		SourcePath: src,
		OutputPath: out,
		Size:       info.Size(),
		URL:        path.Join(i.cfg.DownloadPrefix, fileName),
		CreatedAt:  i.now().UTC(),
	}

	if i.recorder != nil {
		if err := i.recorder.Record(ctx, artifact); err != nil {
			i.logger.WarnContext(ctx, "failed to record artifact",
				slog.String("file", fileName),
				slog.String("error", err.Error()),
			)
		}
	}

	i.logger.InfoContext(ctx, "document compiled",
		slog.String("file", fileName),
		slog.Int64("size", artifact.Size),
	)
	return artifact, nil
}

// createSource claims a fresh base name with O_EXCL and writes markup into
// it. On collision the timestamp is bumped by one millisecond.
func (i *Invoker) createSource(title, markup string) (name, src string, err error) {
	base := SanitizeTitle(title)
	ts := i.now().UnixMilli()

	for attempt := 0; attempt < nameAttempts; attempt, ts = attempt+1, ts+1 {
		name = fmt.Sprintf("%s-%d", base, ts)
		src = filepath.Join(i.cfg.OutputDir, name+i.cfg.SourceExt)

		f, err := os.OpenFile(src, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", domain.ErrFilesystem("failed to create source file").WithDetails(err.Error()).WithCause(err)
		}

		if _, err := os.Lstat(filepath.Join(i.cfg.OutputDir, name+OutputExt)); err == nil {
			f.Close()
			os.Remove(src)
			continue
		}

		_, werr := f.WriteString(markup)
		cerr := f.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			os.Remove(src)
			return "", "", domain.ErrFilesystem("failed to write source file").WithDetails(werr.Error()).WithCause(werr)
		}
		return name, src, nil
	}

	return "", "", domain.ErrFilesystem(fmt.Sprintf("could not allocate a unique file name for %q", base))
}

// run invokes the compiler with discrete arguments under the configured
// timeout. The process is killed when the deadline passes.
func (i *Invoker) run(ctx context.Context, src, out string) error {
	runCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	var output bytes.Buffer
	cmd := exec.CommandContext(runCtx, i.cfg.Bin, "compile", src, out)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err == nil {
		return nil
	}

	switch {
	case ctx.Err() != nil:
		os.Remove(out)
		return domain.ErrCompilation("compilation cancelled").WithCause(ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		os.Remove(out)
		return domain.ErrCompilationTimeout(fmt.Sprintf("compiler did not finish within %s", i.cfg.Timeout)).
			WithDetails(truncate(output.String())).
			WithCause(err)
	case errors.Is(err, exec.ErrNotFound):
		return domain.ErrToolchain(fmt.Sprintf("typesetting compiler %q is not available", i.cfg.Bin)).WithCause(err)
	default:
		os.Remove(out)
		details := truncate(output.String())
		if details == "" {
			details = err.Error()
		}
		return domain.ErrCompilation("compiler exited with an error").WithDetails(details).WithCause(err)
	}
}

func (i *Invoker) removeSource(ctx context.Context, src string) {
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		i.logger.WarnContext(ctx, "failed to remove source file",
			slog.String("path", src),
			slog.String("error", err.Error()),
		)
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes] + "..."
	}
	return s
}
