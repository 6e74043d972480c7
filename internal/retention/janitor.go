// Package retention expires compiled documents. A janitor periodically
// removes artifacts and leftover sources older than the retention window
// from the output directory, then prunes their metadata.
package retention

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/storage"
)

// minInterval bounds how often the output directory is scanned.
const minInterval = time.Second

// CycleStats tracks what happened in a single sweep.
type CycleStats struct {
	FilesRemoved  int
	RecordsPruned int64
	Errors        []error
}

// Janitor deletes expired files with the configured extensions.
type Janitor struct {
	dir       string
	exts      []string
	retention time.Duration
	interval  time.Duration
	store     storage.ArtifactStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewJanitor creates a janitor for dir. A nil store skips metadata pruning.
func NewJanitor(dir string, exts []string, retention, interval time.Duration, store storage.ArtifactStore, logger *slog.Logger) *Janitor {
	if interval < minInterval {
		interval = minInterval
	}
	return &Janitor{
		dir:       dir,
		exts:      exts,
		retention: retention,
		interval:  interval,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs sweeps until ctx is canceled. A zero retention disables it.
func (j *Janitor) Start(ctx context.Context) {
	if j.retention <= 0 {
		j.logger.Info("retention janitor disabled")
		return
	}

	j.logger.Info("retention janitor started",
		slog.String("dir", j.dir),
		slog.Duration("retention", j.retention),
		slog.Duration("interval", j.interval),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("retention janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over the output directory and the store.
func (j *Janitor) Sweep(ctx context.Context) CycleStats {
	var stats CycleStats
	cutoff := j.now().Add(-j.retention)

	entries, err := os.ReadDir(j.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		stats.Errors = append(stats.Errors, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !j.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			j.logger.WarnContext(ctx, "failed to delete expired file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			stats.Errors = append(stats.Errors, err)
			continue
		}
		stats.FilesRemoved++
	}

	if j.store != nil {
		n, err := j.store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			j.logger.WarnContext(ctx, "failed to prune artifact records", slog.String("error", err.Error()))
			stats.Errors = append(stats.Errors, err)
		}
		stats.RecordsPruned = n
	}

	if stats.FilesRemoved > 0 || stats.RecordsPruned > 0 {
		j.logger.InfoContext(ctx, "retention sweep complete",
			slog.Int("files_removed", stats.FilesRemoved),
			slog.Int64("records_pruned", stats.RecordsPruned),
		)
	}
	return stats
}

func (j *Janitor) matches(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range j.exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
