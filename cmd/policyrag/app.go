package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"policy-rag/internal/config"
	"policy-rag/internal/corpus"
	"policy-rag/internal/indexer"
	"policy-rag/internal/llm"
	"policy-rag/internal/rag"
	"policy-rag/internal/service"
	"policy-rag/internal/storage"
	"policy-rag/internal/vectorstore"
)

// app holds the components shared by every command.
type app struct {
	cfg      config.Config
	db       *sql.DB
	store    vectorstore.VectorStore
	embedder indexer.Embedder
	runs     *storage.RunRepo
	sources  *storage.SourceRepo
	closers  []func() error
}

// openApp opens the manifest database and the configured vector store and
// embedding backends. Nothing here talks to the embedding or chat provider.
func openApp(cfg config.Config) (*app, error) {
	db, err := storage.New(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{cfg: cfg, db: db, closers: []func() error{db.Close}}

	if err := storage.Migrate(db); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Database initialized", "path", cfg.StorePath())

	a.runs = storage.NewRunRepo(db)
	a.sources = storage.NewSourceRepo(db)

	switch cfg.VectorBackend {
	case "qdrant":
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.store = qs
		a.closers = append(a.closers, qs.Close)
	default:
		a.store = vectorstore.NewLocalStore(storage.NewChunkRepo(db))
	}

	switch cfg.EmbeddingBackend {
	case "openai":
		a.embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim, cfg.LLMTimeout)
	default:
		a.embedder = llm.NewHashingEmbedder(cfg.EmbeddingDim, cfg.Seed)
	}

	return a, nil
}

// Close releases the store connections in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// checkEmbedder embeds a sample text and fails fast if the vector size does not
// match EMBEDDING_DIM.
func (a *app) checkEmbedder(ctx context.Context) error {
	vecs, err := a.embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) != a.cfg.EmbeddingDim {
		got := 0
		if len(vecs) > 0 {
			got = len(vecs[0])
		}
		return fmt.Errorf("embedding vector size mismatch: expected %d, got %d", a.cfg.EmbeddingDim, got)
	}
	slog.Debug("Embedding client validated", "backend", a.cfg.EmbeddingBackend, "vector_size", a.cfg.EmbeddingDim)
	return nil
}

func (a *app) pipeline() (*indexer.Pipeline, error) {
	concurrency := 1
	if a.cfg.EmbeddingBackend == "openai" {
		concurrency = 4
	}
	return indexer.NewPipeline(corpus.NewLoader(), a.embedder, a.store, a.runs, a.sources, indexer.Options{
		Collection:   a.cfg.QdrantCollection,
		BatchSize:    a.cfg.EmbedBatchSize,
		Concurrency:  concurrency,
		Embedder:     a.embedderSpec(),
		ChunkSize:    a.cfg.ChunkSize,
		ChunkOverlap: a.cfg.ChunkOverlap,
	})
}

func (a *app) embedderSpec() indexer.EmbedderSpec {
	return indexer.EmbedderSpec{
		Backend: a.cfg.EmbeddingBackend,
		Model:   a.cfg.EmbeddingModel,
		Dim:     a.cfg.EmbeddingDim,
		Seed:    a.cfg.Seed,
	}
}

// checkIndex fails when the index was built by an embedder other than the
// configured one.
func (a *app) checkIndex(ctx context.Context) error {
	return indexer.CheckCompatible(ctx, a.runs, a.embedderSpec())
}

func (a *app) engine() rag.Engine {
	chat := llm.NewClient(llm.ClientOptions{
		BaseURL: a.cfg.LLMBaseURL,
		APIKey:  a.cfg.LLMAPIKey,
		Model:   a.cfg.LLMModelName,
		SiteURL: a.cfg.SiteURL,
		AppName: a.cfg.AppName,
		Timeout: a.cfg.LLMTimeout,
	})
	return rag.NewEngine(a.embedder, a.store, chat, rag.Options{
		Collection:     a.cfg.QdrantCollection,
		TopK:           a.cfg.TopK,
		MinRelevance:   float32(a.cfg.MinRelevance),
		MaxAnswerChars: a.cfg.MaxAnswerChars,
		RefusalText:    a.cfg.RefusalText,
		Generation: rag.GenerationOptions{
			MaxTokens:   a.cfg.LLMMaxTokens,
			Temperature: a.cfg.LLMTemperature,
			Timeout:     a.cfg.LLMTimeout,
		},
	})
}

func (a *app) statusService() service.StatusService {
	return service.NewStatusService(a.store, a.runs, a.sources, a.cfg.VectorBackend, a.cfg.QdrantCollection)
}
