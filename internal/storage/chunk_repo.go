package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks policy-rag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrVectorSizeMismatch is returned when a collection exists with a different vector size.
var ErrVectorSizeMismatch = errors.New("collection vector size mismatch")

// ChunkStore defines the interface for persisted chunk vectors.
type ChunkStore interface {
	// EnsureCollection creates the collection if missing, or validates its vector size.
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	// DropCollection removes the collection and every vector in it.
	DropCollection(ctx context.Context, name string) error
	// Upsert inserts records or overwrites existing ones with the same chunk ID.
	Upsert(ctx context.Context, records []VectorRecord) error
	// Count returns the number of vectors in the collection.
	Count(ctx context.Context, collection string) (int, error)
	// ForEach calls fn for every record in insertion order. Returning an error stops the iteration.
	ForEach(ctx context.Context, collection string, fn func(VectorRecord) error) error
}

// ChunkRepo provides methods for chunk vector operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// EnsureCollection creates the collection if missing, or validates its vector size.
func (r *ChunkRepo) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be greater than 0")
	}

	var existing int
	err := r.db.QueryRowContext(ctx, "SELECT vector_size FROM collections WHERE name = ?", name).Scan(&existing)
	if err == sql.ErrNoRows {
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO collections (name, vector_size) VALUES (?, ?) ON CONFLICT (name) DO NOTHING",
			name, vectorSize,
		)
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query collection: %w", err)
	}

	if existing != vectorSize {
		return fmt.Errorf("%w: expected %d, got %d", ErrVectorSizeMismatch, vectorSize, existing)
	}
	return nil
}

// DropCollection removes the collection and every vector in it.
// Dropping a missing collection is not an error.
func (r *ChunkRepo) DropCollection(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE collection = ?", name); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Upsert inserts records or overwrites existing ones with the same chunk ID,
// all in one transaction. An overwritten record keeps its original position.
func (r *ChunkRepo) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vectors (collection, chunk_id, vector, text, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (collection, chunk_id) DO UPDATE SET
		 vector = excluded.vector, text = excluded.text, payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", rec.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Collection, rec.ChunkID, encodeVector(rec.Vector), rec.Text, string(payload)); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", rec.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of vectors in the collection.
func (r *ChunkRepo) Count(ctx context.Context, collection string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors WHERE collection = ?", collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// ForEach calls fn for every record in insertion order.
func (r *ChunkRepo) ForEach(ctx context.Context, collection string, fn func(VectorRecord) error) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT chunk_id, vector, text, payload FROM vectors WHERE collection = ? ORDER BY rowid",
		collection,
	)
	if err != nil {
		return fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		rec, err := scanVector(rows, collection)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVector(row rowScanner, collection string) (VectorRecord, error) {
	var (
		rec     = VectorRecord{Collection: collection}
		blob    []byte
		payload string
	)
	if err := row.Scan(&rec.ChunkID, &blob, &rec.Text, &payload); err != nil {
		return rec, fmt.Errorf("failed to scan vector: %w", err)
	}

	vec, err := decodeVector(blob)
	if err != nil {
		return rec, fmt.Errorf("failed to decode vector %s: %w", rec.ChunkID, err)
	}
	rec.Vector = vec

	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return rec, fmt.Errorf("failed to decode payload %s: %w", rec.ChunkID, err)
	}
	return rec, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid vector length %d", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
