package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/storage"
)

// Store is a SQLite implementation of ArtifactStore
type Store struct {
	db *sql.DB
}

var _ storage.ArtifactStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS artifacts (
			file_name TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			output_path TEXT NOT NULL,
			url TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) Record(ctx context.Context, a *domain.Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO artifacts (file_name, title, output_path, url, size, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)
	          ON CONFLICT(file_name) DO UPDATE SET
	            title = excluded.title,
	            output_path = excluded.output_path,
	            url = excluded.url,
	            size = excluded.size,
	            created_at = excluded.created_at`

	_, err := s.db.ExecContext(ctx, query, a.FileName, a.Title, a.OutputPath, a.URL, a.Size, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, fileName string) (*domain.Artifact, error) {
	query := `SELECT file_name, title, output_path, url, size, created_at
	          FROM artifacts WHERE file_name = ?`

	a, err := scanArtifact(s.db.QueryRowContext(ctx, query, fileName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*domain.Artifact, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	query := `SELECT file_name, title, output_path, url, size, created_at
	          FROM artifacts
	          ORDER BY created_at DESC, file_name DESC
	          LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, rows.Err()
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (*domain.Artifact, error) {
	var a domain.Artifact
	var created int64
	if err := row.Scan(&a.FileName, &a.Title, &a.OutputPath, &a.URL, &a.Size, &created); err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	return &a, nil
}
