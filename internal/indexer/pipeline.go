package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/corpus"
	"policy-rag/internal/metrics"
	"policy-rag/internal/storage"
	"policy-rag/internal/vectorstore"
)

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Options configures a Pipeline.
type Options struct {
	Collection     string
	BatchSize      int // Texts per embedding request
	Concurrency  int // Embedding requests in flight
	Embedder     EmbedderSpec
	ChunkSize    int
	ChunkOverlap int
}

// Report describes a finished ingestion run.
type Report struct {
	RunID    string
	Stats    IngestStats
	Failed   []*corpus.LoadError
	Duration time.Duration
}

// Pipeline loads a corpus, chunks it, embeds the chunks and writes them to a vector store.
type Pipeline struct {
	loader   *corpus.Loader
	chunker  *Chunker
	embedder Embedder
	store    vectorstore.VectorStore
	runs     storage.RunStore
	sources  storage.SourceStore
	opts     Options
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	loader *corpus.Loader,
	embedder Embedder,
	store vectorstore.VectorStore,
	runs storage.RunStore,
	sources storage.SourceStore,
	opts Options,
) (*Pipeline, error) {
	chunker, err := NewChunker(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Embedder.Dim == 0 {
		opts.Embedder.Dim = embedder.Dimension()
	}

	return &Pipeline{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		runs:     runs,
		sources:  sources,
		opts:     opts,
	}, nil
}

// Ingest indexes every supported file under root. With reset the collection and
// source manifest are emptied first; otherwise chunks are upserted by chunk ID.
// Files that fail to load are reported, not returned as errors. An empty corpus
// still leaves an empty, queryable collection behind.
func (p *Pipeline) Ingest(ctx context.Context, root string, reset bool) (*Report, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	run := &storage.IngestRun{
		ID:             uuid.New().String(),
		StartedAt:      start.UTC(),
		CorpusRoot:     root,
		EmbeddingModel: p.opts.Embedder.Model,
		Embedder:       p.opts.Embedder.Fingerprint(),
		ChunkSize:      p.opts.ChunkSize,
		ChunkOverlap:   p.opts.ChunkOverlap,
		Seed:           p.opts.Embedder.Seed,
		Reset:          reset,
	}
	if err := p.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	ctx, logger = contextutil.WithAttrs(ctx, "run_id", run.ID)
	logger.InfoContext(ctx, "starting ingestion", "root", root, "reset", reset, "collection", p.opts.Collection)

	report, err := p.ingest(ctx, run, root, reset)
	duration := time.Since(start)

	run.Status = storage.RunStatusCompleted
	if err != nil {
		run.Status = storage.RunStatusFailed
		run.Error = err.Error()
	}
	if report != nil {
		report.Duration = duration
		run.Documents = report.Stats.Documents
		run.Chunks = report.Stats.Chunks
		run.FailedFiles = report.Stats.FailedFiles
	}
	// Record the outcome even if ctx was cancelled mid-run.
	if finishErr := p.runs.Finish(context.WithoutCancel(ctx), run); finishErr != nil {
		logger.ErrorContext(ctx, "failed to record run finish", "error", finishErr)
		err = errors.Join(err, fmt.Errorf("failed to record run finish: %w", finishErr))
	}
	metrics.IngestDuration.WithLabelValues(run.Status).Observe(duration.Seconds())

	if err != nil {
		logger.ErrorContext(ctx, "ingestion failed", "error", err, "duration", duration)
		return nil, err
	}

	logger.InfoContext(ctx, "ingestion completed",
		"documents", report.Stats.Documents,
		"chunks", report.Stats.Chunks,
		"failed_files", report.Stats.FailedFiles,
		"duration", duration,
	)
	return report, nil
}

func (p *Pipeline) ingest(ctx context.Context, run *storage.IngestRun, root string, reset bool) (*Report, error) {
	logger := contextutil.LoggerFromContext(ctx)
	report := &Report{RunID: run.ID}

	if !reset {
		// Upserting into a collection built by another embedder would mix vector spaces.
		if err := CheckCompatible(ctx, p.runs, p.opts.Embedder); err != nil {
			return report, err
		}
	} else {
		if err := p.store.Reset(ctx, p.opts.Collection); err != nil {
			return report, fmt.Errorf("failed to reset vector store: %w", err)
		}
		if err := p.sources.DeleteAll(ctx); err != nil {
			return report, fmt.Errorf("failed to reset source manifest: %w", err)
		}
	}

	if err := p.store.EnsureCollection(ctx, p.opts.Collection, p.embedder.Dimension()); err != nil {
		return report, fmt.Errorf("failed to prepare collection: %w", err)
	}

	loaded, err := p.loader.Load(ctx, root, run.ID)
	if err != nil {
		return report, fmt.Errorf("failed to load corpus: %w", err)
	}
	report.Failed = loaded.Errors
	metrics.IngestDocuments.Add(float64(len(loaded.Documents)))
	metrics.IngestFailures.Add(float64(len(loaded.Errors)))

	chunks, err := p.chunker.Split(loaded.Documents)
	if err != nil {
		return report, fmt.Errorf("failed to chunk documents: %w", err)
	}
	chunks = AssignChunkIDs(chunks)

	report.Stats = ComputeStats(loaded.Documents, chunks)
	report.Stats.FailedFiles = len(loaded.Errors)
	report.Stats.IndexVersion = IndexVersion(p.opts.Embedder.Fingerprint(), p.opts.ChunkSize, p.opts.ChunkOverlap)

	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks produced, collection left empty", "documents", len(loaded.Documents))
	} else {
		vectors, err := p.embed(ctx, chunks)
		if err != nil {
			return report, err
		}
		if err := p.write(ctx, chunks, vectors); err != nil {
			return report, err
		}
	}

	if err := p.recordSources(ctx, run.ID, loaded.Sources, chunks); err != nil {
		return report, err
	}
	return report, nil
}

// embed embeds chunk texts in batches, several batches at a time, and returns
// the vectors in chunk order.
func (p *Pipeline) embed(ctx context.Context, chunks []corpus.Chunk) ([][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)
	dim := p.embedder.Dimension()
	vectors := make([][]float32, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for start := 0; start < len(chunks); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = chunks[start+i].Text
			}

			batch, err := p.embedder.EmbedTexts(gCtx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(batch))
			}
			for i, vec := range batch {
				if len(vec) != dim {
					return fmt.Errorf("embedding size mismatch for %s: expected %d, got %d", chunks[start+i].ID, dim, len(vec))
				}
				vectors[start+i] = vec
			}

			logger.DebugContext(gCtx, "embedded batch", "start", start, "size", len(texts))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// write upserts chunks in batches from a single goroutine.
func (p *Pipeline) write(ctx context.Context, chunks []corpus.Chunk, vectors [][]float32) error {
	for start := 0; start < len(chunks); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(chunks))

		points := make([]vectorstore.Point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, vectorstore.Point{
				ID:   chunks[i].ID,
				Vec:  vectors[i],
				Meta: chunks[i].Payload(),
			})
		}

		if err := p.store.Upsert(ctx, p.opts.Collection, points); err != nil {
			return fmt.Errorf("failed to upsert chunks: %w", err)
		}
		metrics.IngestChunks.Add(float64(len(points)))
	}
	return nil
}

func (p *Pipeline) recordSources(ctx context.Context, runID string, files []corpus.SourceFile, chunks []corpus.Chunk) error {
	perSource := make(map[string]int)
	for _, chunk := range chunks {
		perSource[chunk.Source]++
	}

	for _, file := range files {
		err := p.sources.Upsert(ctx, &storage.SourceRecord{
			Source:     file.Source,
			DocType:    string(file.DocType),
			SourceSHA1: file.SourceSHA1,
			FileMtime:  file.FileMtime,
			Pages:      file.Pages,
			Chunks:     perSource[file.Source],
			LastRunID:  runID,
		})
		if err != nil {
			return fmt.Errorf("failed to record source %s: %w", file.Source, err)
		}
	}
	return nil
}
