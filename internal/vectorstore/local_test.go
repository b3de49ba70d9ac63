package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"policy-rag/internal/storage"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return NewLocalStore(storage.NewChunkRepo(db))
}

func TestLocalStore_Search(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	if err := store.EnsureCollection(ctx, "policies", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	points := []Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{"text": "east"}},
		{ID: "b", Vec: []float32{0, 1}, Meta: map[string]any{"text": "north"}},
		{ID: "c", Vec: []float32{1, 1}, Meta: map[string]any{"text": "north-east"}},
		{ID: "d", Vec: []float32{2, 0}, Meta: map[string]any{"text": "far east"}},
		{ID: "e", Vec: []float32{-1, 0}, Meta: map[string]any{"text": "west"}},
	}
	if err := store.Upsert(ctx, "policies", points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	tests := []struct {
		name    string
		query   []float32
		k       int
		wantIDs []string
	}{
		{
			name:    "ties keep insertion order",
			query:   []float32{1, 0},
			k:       2,
			wantIDs: []string{"a", "d"},
		},
		{
			name:    "k larger than collection",
			query:   []float32{0, 1},
			k:       10,
			wantIDs: []string{"b", "c", "a", "d", "e"},
		},
		{
			name:    "zero query scores everything zero",
			query:   []float32{0, 0},
			k:       3,
			wantIDs: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Search(ctx, "policies", tt.query, tt.k)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(results) != len(tt.wantIDs) {
				t.Fatalf("Search() returned %d results, want %d", len(results), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if results[i].PointID != id {
					t.Errorf("result[%d] = %s, want %s", i, results[i].PointID, id)
				}
			}
			for i := 1; i < len(results); i++ {
				if results[i].Score > results[i-1].Score {
					t.Errorf("results not sorted: %v > %v", results[i].Score, results[i-1].Score)
				}
			}
		})
	}

	results, err := store.Search(ctx, "policies", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Score < 0.9999 || results[0].Meta["text"] != "east" {
		t.Errorf("top result = %+v", results[0])
	}
}

func TestLocalStore_SearchErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	if _, err := store.Search(ctx, "policies", []float32{1}, 0); err == nil {
		t.Error("Search() with k=0 should fail")
	}

	// Missing collection searches as empty
	results, err := store.Search(ctx, "policies", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() on empty store error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() on empty store = %d results", len(results))
	}

	if err := store.EnsureCollection(ctx, "policies", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	if err := store.Upsert(ctx, "policies", []Point{{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := store.Search(ctx, "policies", []float32{1, 0, 0}, 1); err == nil {
		t.Error("Search() with mismatched dimension should fail")
	}
}

func TestLocalStore_CountAndReset(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	if err := store.EnsureCollection(ctx, "policies", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	if err := store.Upsert(ctx, "policies", nil); err != nil {
		t.Fatalf("Upsert(nil) error = %v", err)
	}
	if err := store.Upsert(ctx, "policies", []Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{"text": "a"}},
		{ID: "b", Vec: []float32{0, 1}, Meta: map[string]any{"text": "b"}},
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// Same ID replaces
	if err := store.Upsert(ctx, "policies", []Point{{ID: "a", Vec: []float32{0.5, 0.5}, Meta: map[string]any{"text": "a2"}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	count, err := store.Count(ctx, "policies")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	if err := store.Reset(ctx, "policies"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	count, err = store.Count(ctx, "policies")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() after Reset = %d, want 0", count)
	}
}

func TestCosine(t *testing.T) {
	q := []float32{3, 4}
	if got := cosine(q, norm(q), []float32{6, 8}); got < 0.9999 || got > 1 {
		t.Errorf("cosine(parallel) = %v, want 1", got)
	}
	if got := cosine(q, norm(q), []float32{-3, -4}); got > -0.9999 || got < -1 {
		t.Errorf("cosine(opposite) = %v, want -1", got)
	}
	if got := cosine(q, norm(q), []float32{0, 0}); got != 0 {
		t.Errorf("cosine(zero) = %v, want 0", got)
	}
}
