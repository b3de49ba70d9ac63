package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/storage"
)

// LocalStore implements VectorStore on the SQLite database under PERSIST_DIR.
// Search is an exact brute-force cosine scan, which suits corpora of a few
// hundred thousand chunks or fewer.
type LocalStore struct {
	chunks storage.ChunkStore
}

// NewLocalStore creates a local vector store backed by chunks.
func NewLocalStore(chunks storage.ChunkStore) *LocalStore {
	return &LocalStore{chunks: chunks}
}

// EnsureCollection creates the collection if missing, or validates its vector size.
func (s *LocalStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	if err := s.chunks.EnsureCollection(ctx, collection, vectorSize); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "collection ready", "backend", "local", "collection", collection, "vector_size", vectorSize)
	return nil
}

// Upsert inserts or updates points in the collection.
func (s *LocalStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	records := make([]storage.VectorRecord, 0, len(points))
	for _, p := range points {
		text, _ := p.Meta["text"].(string)
		records = append(records, storage.VectorRecord{
			Collection: collection,
			ChunkID:    p.ID,
			Vector:     p.Vec,
			Text:       text,
			Payload:    p.Meta,
		})
	}

	if err := s.chunks.Upsert(ctx, records); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search scores every stored vector against query and returns the best k.
func (s *LocalStore) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	queryNorm := norm(query)
	var results []SearchResult
	err := s.chunks.ForEach(ctx, collection, func(rec storage.VectorRecord) error {
		if len(rec.Vector) != len(query) {
			return fmt.Errorf("vector %s has size %d, query has %d", rec.ChunkID, len(rec.Vector), len(query))
		}
		results = append(results, SearchResult{
			PointID: rec.ChunkID,
			Score:   cosine(query, queryNorm, rec.Vector),
			Meta:    rec.Payload,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Count returns the number of points in the collection.
func (s *LocalStore) Count(ctx context.Context, collection string) (int, error) {
	return s.chunks.Count(ctx, collection)
}

// Reset removes the collection and all of its points.
func (s *LocalStore) Reset(ctx context.Context, collection string) error {
	if err := s.chunks.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to reset collection: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "collection reset", "backend", "local", "collection", collection)
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(query []float32, queryNorm float64, v []float32) float32 {
	vNorm := norm(v)
	if queryNorm == 0 || vNorm == 0 {
		return 0
	}
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(v[i])
	}
	score := dot / (queryNorm * vNorm)
	// Clamp rounding noise so scores stay within [-1, 1].
	return float32(math.Max(-1, math.Min(1, score)))
}
