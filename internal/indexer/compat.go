package indexer

import (
	"context"
	"errors"
	"fmt"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/storage"
)

// ErrEmbedderMismatch is returned when a collection was built by a different
// embedder than the one configured. Query vectors from the configured embedder
// would not be comparable with the stored ones.
var ErrEmbedderMismatch = errors.New("index was built with a different embedder")

// HashingBackend is the local feature-hashing embedding backend.
const HashingBackend = "hashing"

// EmbedderSpec describes the vector space an embedder produces.
type EmbedderSpec struct {
	Backend string
	Model   string
	Dim     int
	Seed    int64 // Only the hashing backend depends on it
}

// Fingerprint identifies the vector space. Two embedders with equal
// fingerprints produce comparable vectors.
func (s EmbedderSpec) Fingerprint() string {
	if s.Backend == HashingBackend {
		return fmt.Sprintf("%s/%s/%d/seed=%d", s.Backend, s.Model, s.Dim, s.Seed)
	}
	return fmt.Sprintf("%s/%s/%d", s.Backend, s.Model, s.Dim)
}

// CheckCompatible compares spec with the embedder of the latest completed
// ingestion run. A store that was never ingested, or whose runs predate
// fingerprints, passes.
func CheckCompatible(ctx context.Context, runs storage.RunStore, spec EmbedderSpec) error {
	run, err := runs.LatestCompleted(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read latest ingestion run: %w", err)
	}

	want := spec.Fingerprint()
	switch run.Embedder {
	case want:
		return nil
	case "":
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "index has no recorded embedder, skipping compatibility check", "run_id", run.ID)
		return nil
	}
	return fmt.Errorf("%w: run %s used %s, configured embedder is %s; re-run ingest with --reset",
		ErrEmbedderMismatch, run.ID, run.Embedder, want)
}
