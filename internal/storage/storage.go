// Package storage persists metadata about compiled artifacts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
)

// ErrNotFound is returned when no artifact has the requested file name.
var ErrNotFound = errors.New("artifact not found")

// DefaultListLimit caps List when the caller passes zero.
const DefaultListLimit = 100

// ArtifactStore records compiled documents so they can be listed and
// expired. File names are unique; recording an existing name replaces it.
type ArtifactStore interface {
	Record(ctx context.Context, a *domain.Artifact) error
	Get(ctx context.Context, fileName string) (*domain.Artifact, error)
	// List returns the newest artifacts first.
	List(ctx context.Context, limit int) ([]*domain.Artifact, error)
	// DeleteOlderThan removes artifacts created before cutoff and returns
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
