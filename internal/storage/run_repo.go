package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_store.go -package=mocks policy-rag/internal/storage RunStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunStore defines the interface for ingestion run bookkeeping.
type RunStore interface {
	// Start records a new run with status "running".
	Start(ctx context.Context, run *IngestRun) error
	// Finish stores the final counters, status and error of a run.
	Finish(ctx context.Context, run *IngestRun) error
	// Latest returns the most recently started run. Returns ErrNotFound if there is none.
	Latest(ctx context.Context) (*IngestRun, error)
	// LatestCompleted returns the most recently started run that completed.
	// Returns ErrNotFound if there is none.
	LatestCompleted(ctx context.Context) (*IngestRun, error)
	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]IngestRun, error)
}

// RunRepo provides methods for ingestion run operations.
// It implements the RunStore interface.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Start records a new run with status "running". StartedAt defaults to now.
func (r *RunRepo) Start(ctx context.Context, run *IngestRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = RunStatusRunning

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, started_at, status, corpus_root, embedding_model, embedder, chunk_size, chunk_overlap, seed, reset)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timestampLayout), run.Status, run.CorpusRoot, run.EmbeddingModel, run.Embedder,
		run.ChunkSize, run.ChunkOverlap, run.Seed, run.Reset,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish stores the final counters, status and error of a run. FinishedAt defaults to now.
func (r *RunRepo) Finish(ctx context.Context, run *IngestRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE ingest_runs SET finished_at = ?, status = ?, documents = ?, chunks = ?, failed_files = ?, error = ?
		 WHERE id = ?`,
		run.FinishedAt.UTC().Format(timestampLayout), run.Status, run.Documents, run.Chunks, run.FailedFiles,
		nullString(run.Error), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Latest returns the most recently started run.
func (r *RunRepo) Latest(ctx context.Context) (*IngestRun, error) {
	return first(r.List(ctx, 1))
}

// LatestCompleted returns the most recently started run that completed.
func (r *RunRepo) LatestCompleted(ctx context.Context) (*IngestRun, error) {
	return first(r.queryRuns(ctx, "WHERE status = ?", RunStatusCompleted, 1))
}

// List returns up to limit runs, newest first.
func (r *RunRepo) List(ctx context.Context, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryRuns(ctx, "", nil, limit)
}

func first(runs []IngestRun, err error) (*IngestRun, error) {
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

// queryRuns lists runs newest first. where is either empty or a single
// condition on one parameter, arg.
func (r *RunRepo) queryRuns(ctx context.Context, where string, arg any, limit int) ([]IngestRun, error) {
	args := []any{limit}
	if where != "" {
		args = []any{arg, limit}
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, corpus_root, embedding_model, embedder, chunk_size, chunk_overlap,
		        seed, reset, documents, chunks, failed_files, error
		 FROM ingest_runs `+where+` ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []IngestRun
	for rows.Next() {
		var (
			run        IngestRun
			startedAt  string
			finishedAt sql.NullString
			errText    sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Status, &run.CorpusRoot, &run.EmbeddingModel,
			&run.Embedder, &run.ChunkSize, &run.ChunkOverlap, &run.Seed, &run.Reset, &run.Documents, &run.Chunks,
			&run.FailedFiles, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt, err = parseTimestamp(startedAt)
		if err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			t, err := parseTimestamp(finishedAt.String)
			if err != nil {
				return nil, err
			}
			run.FinishedAt = &t
		}
		run.Error = errText.String
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
