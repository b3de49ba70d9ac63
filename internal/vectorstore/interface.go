package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks policy-rag/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata. ID is the chunk ID.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
// Score is the cosine similarity between the query and the point, in [-1, 1].
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// EnsureCollection creates the collection if missing, or validates its vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or updates points in the collection, keyed by point ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to k points ordered by descending score.
	// Points with equal scores keep the order they were stored in.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Reset removes the collection and all of its points.
	Reset(ctx context.Context, collection string) error
}
