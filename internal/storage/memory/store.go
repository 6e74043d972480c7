package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/storage"
)

// Store is an in-memory implementation of ArtifactStore
type Store struct {
	mu        sync.RWMutex
	artifacts map[string]domain.Artifact
}

var _ storage.ArtifactStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		artifacts: make(map[string]domain.Artifact),
	}
}

func (s *Store) Record(ctx context.Context, a *domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.artifacts[a.FileName] = *a
	return nil
}

func (s *Store) Get(ctx context.Context, fileName string) (*domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[fileName]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	result := make([]*domain.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		a := a
		result = append(result, &a)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].FileName > result[j].FileName
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for name, a := range s.artifacts {
		if a.CreatedAt.Before(cutoff) {
			delete(s.artifacts, name)
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error {
	return nil
}
