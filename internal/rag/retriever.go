package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks policy-rag/internal/rag Embedder

import (
	"context"
	"fmt"
	"sort"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/corpus"
	"policy-rag/internal/vectorstore"
)

// Embedder embeds query text with the same model used at ingestion.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Retrieved is one stored chunk and its cosine relevance to the question.
type Retrieved struct {
	Chunk corpus.Chunk
	Score float32
}

// Retriever finds the stored chunks most similar to a question.
type Retriever struct {
	embedder   Embedder
	store      vectorstore.VectorStore
	collection string
}

// NewRetriever creates a retriever over one collection.
func NewRetriever(embedder Embedder, store vectorstore.VectorStore, collection string) *Retriever {
	return &Retriever{
		embedder:   embedder,
		store:      store,
		collection: collection,
	}
}

// Retrieve returns at most k chunks in descending score order. Equal scores keep
// the order the store returned them in. An empty store yields an empty result;
// embedding and store failures wrap ErrRetrieval.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]Retrieved, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	embeddings, err := r.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return nil, fmt.Errorf("%w: failed to embed question: %w", ErrRetrieval, err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned for question", ErrRetrieval)
	}

	results, err := r.store.Search(ctx, r.collection, embeddings[0], k)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return nil, fmt.Errorf("%w: failed to search vector store: %w", ErrRetrieval, err)
	}

	retrieved := make([]Retrieved, 0, len(results))
	for _, res := range results {
		chunk := corpus.ChunkFromPayload(res.Meta)
		if chunk.ID == "" {
			chunk.ID = res.PointID
		}
		retrieved = append(retrieved, Retrieved{Chunk: chunk, Score: res.Score})
	}

	sort.SliceStable(retrieved, func(i, j int) bool {
		return retrieved[i].Score > retrieved[j].Score
	})
	if len(retrieved) > k {
		retrieved = retrieved[:k]
	}

	if len(retrieved) > 0 {
		logger.DebugContext(ctx, "vector search completed", "results", len(retrieved), "k", k, "top_score", retrieved[0].Score)
	} else {
		logger.DebugContext(ctx, "vector search completed", "results", 0, "k", k)
	}
	return retrieved, nil
}
