package storage

import (
	"context"
	"errors"
	"testing"
)

func TestChunkRepo_EnsureCollection(t *testing.T) {
	ctx := context.Background()
	repo := NewChunkRepo(newTestDB(t))

	if err := repo.EnsureCollection(ctx, "policies", 4); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	// Same size again is fine
	if err := repo.EnsureCollection(ctx, "policies", 4); err != nil {
		t.Fatalf("EnsureCollection() second call error = %v", err)
	}

	err := repo.EnsureCollection(ctx, "policies", 8)
	if !errors.Is(err, ErrVectorSizeMismatch) {
		t.Fatalf("EnsureCollection() error = %v, want ErrVectorSizeMismatch", err)
	}

	if err := repo.EnsureCollection(ctx, "other", 0); err == nil {
		t.Error("EnsureCollection() with size 0 should fail")
	}
}

func TestChunkRepo_UpsertAndForEach(t *testing.T) {
	ctx := context.Background()
	repo := NewChunkRepo(newTestDB(t))
	if err := repo.EnsureCollection(ctx, "policies", 3); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	records := []VectorRecord{
		{Collection: "policies", ChunkID: "a.txt::p1::c000", Vector: []float32{1, 0, 0}, Text: "first", Payload: map[string]any{"source": "a.txt", "page": int64(0)}},
		{Collection: "policies", ChunkID: "a.txt::p1::c001", Vector: []float32{0, 1, 0}, Text: "second", Payload: map[string]any{"source": "a.txt"}},
		{Collection: "policies", ChunkID: "b.txt::p1::c000", Vector: []float32{0, 0, -1.5}, Text: "third", Payload: map[string]any{"source": "b.txt"}},
	}
	if err := repo.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Re-upsert the first record with new content: same position, no duplicate
	updated := records[0]
	updated.Text = "first, revised"
	if err := repo.Upsert(ctx, []VectorRecord{updated}); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}

	count, err := repo.Count(ctx, "policies")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	var got []VectorRecord
	if err := repo.ForEach(ctx, "policies", func(rec VectorRecord) error {
		got = append(got, rec)
		return nil
	}); err != nil {
		t.Fatalf("ForEach() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("ForEach() visited %d records, want 3", len(got))
	}
	if got[0].ChunkID != "a.txt::p1::c000" || got[0].Text != "first, revised" {
		t.Errorf("first record = %s %q, want updated a.txt::p1::c000", got[0].ChunkID, got[0].Text)
	}
	if got[2].Vector[2] != -1.5 {
		t.Errorf("vector round trip = %v", got[2].Vector)
	}
	if got[0].Payload["source"] != "a.txt" {
		t.Errorf("payload = %v", got[0].Payload)
	}
}

func TestChunkRepo_UpsertRequiresCollection(t *testing.T) {
	repo := NewChunkRepo(newTestDB(t))
	err := repo.Upsert(context.Background(), []VectorRecord{
		{Collection: "missing", ChunkID: "x", Vector: []float32{1}, Text: "x", Payload: map[string]any{}},
	})
	if err == nil {
		t.Fatal("Upsert() into a missing collection should fail")
	}
}

func TestChunkRepo_DropCollection(t *testing.T) {
	ctx := context.Background()
	repo := NewChunkRepo(newTestDB(t))
	if err := repo.EnsureCollection(ctx, "policies", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	if err := repo.Upsert(ctx, []VectorRecord{{Collection: "policies", ChunkID: "x", Vector: []float32{1, 0}, Text: "x", Payload: map[string]any{}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repo.DropCollection(ctx, "policies"); err != nil {
		t.Fatalf("DropCollection() error = %v", err)
	}
	count, err := repo.Count(ctx, "policies")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() after drop = %d, want 0", count)
	}

	// Collection can be recreated with a different size after a drop
	if err := repo.EnsureCollection(ctx, "policies", 5); err != nil {
		t.Errorf("EnsureCollection() after drop error = %v", err)
	}
	// Dropping a missing collection is a no-op
	if err := repo.DropCollection(ctx, "never-created"); err != nil {
		t.Errorf("DropCollection() missing error = %v", err)
	}
}

func TestDecodeVector_InvalidLength(t *testing.T) {
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("decodeVector() error = nil, want error")
	}
}
