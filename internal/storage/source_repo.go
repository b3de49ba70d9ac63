package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_source_store.go -package=mocks policy-rag/internal/storage SourceStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// SourceStore defines the interface for the per-file ingest manifest.
type SourceStore interface {
	// Upsert inserts a source or replaces the stored summary for the same path.
	Upsert(ctx context.Context, source *SourceRecord) error
	// Get returns the summary for one source. Returns ErrNotFound if not found.
	Get(ctx context.Context, source string) (*SourceRecord, error)
	// ListAll returns every source ordered by path.
	ListAll(ctx context.Context) ([]SourceRecord, error)
	// DeleteAll empties the manifest.
	DeleteAll(ctx context.Context) error
}

// SourceRepo provides methods for source manifest operations.
// It implements the SourceStore interface.
type SourceRepo struct {
	db *sql.DB
}

// NewSourceRepo creates a new SourceRepo.
func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// Upsert inserts a source or replaces the stored summary for the same path.
func (r *SourceRepo) Upsert(ctx context.Context, source *SourceRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (source, doc_type, source_sha1, file_mtime, pages, chunks, last_run_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (source) DO UPDATE SET
		 doc_type = excluded.doc_type, source_sha1 = excluded.source_sha1, file_mtime = excluded.file_mtime,
		 pages = excluded.pages, chunks = excluded.chunks, last_run_id = excluded.last_run_id,
		 updated_at = CURRENT_TIMESTAMP`,
		source.Source, source.DocType, source.SourceSHA1, source.FileMtime, source.Pages, source.Chunks, source.LastRunID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// Get returns the summary for one source.
func (r *SourceRepo) Get(ctx context.Context, source string) (*SourceRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT source, doc_type, source_sha1, file_mtime, pages, chunks, last_run_id, updated_at
		 FROM sources WHERE source = ?`,
		source,
	)
	rec, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAll returns every source ordered by path.
func (r *SourceRepo) ListAll(ctx context.Context) ([]SourceRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source, doc_type, source_sha1, file_mtime, pages, chunks, last_run_id, updated_at
		 FROM sources ORDER BY source`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sources []SourceRecord
	for rows.Next() {
		rec, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sources, nil
}

// DeleteAll empties the manifest.
func (r *SourceRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sources"); err != nil {
		return fmt.Errorf("failed to delete sources: %w", err)
	}
	return nil
}

func scanSource(row rowScanner) (SourceRecord, error) {
	var (
		rec       SourceRecord
		updatedAt string
	)
	if err := row.Scan(&rec.Source, &rec.DocType, &rec.SourceSHA1, &rec.FileMtime, &rec.Pages, &rec.Chunks,
		&rec.LastRunID, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan source: %w", err)
	}

	t, err := parseTimestamp(updatedAt)
	if err != nil {
		return rec, err
	}
	rec.UpdatedAt = t
	return rec, nil
}
