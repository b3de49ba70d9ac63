package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/metrics"
	"policy-rag/internal/vectorstore"
)

// Fixed answers for the non-grounded terminal states.
const (
	EmptyQuestionText    = "Please provide a question."
	RetrievalFailedText  = "Request failed (retrieval)."
	GenerationFailedText = "Request failed (LLM)."
)

// MaxK caps per-request overrides of the retrieval depth.
const MaxK = 100

// errModelRefused marks an answer in which the model declined on its own.
var errModelRefused = fmt.Errorf("%w: model refused", ErrNoEvidence)

// Engine provides RAG (Retrieval-Augmented Generation) functionality.
type Engine interface {
	// Ask answers a question from the retrieved context. Every pipeline failure
	// is folded into the response; the error is only for invalid requests.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

// Options configures the query pipeline.
type Options struct {
	Collection     string
	TopK           int
	MinRelevance   float32 // Floor for the top-ranked score only
	MaxAnswerChars int
	RefusalText    string
	Generation     GenerationOptions
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever *Retriever
	generator *Generator
	opts      Options
}

// NewEngine creates a new RAG engine.
func NewEngine(embedder Embedder, store vectorstore.VectorStore, model ChatModel, opts Options) Engine {
	return &ragEngine{
		retriever: NewRetriever(embedder, store, opts.Collection),
		generator: NewGenerator(model, opts.Generation),
		opts:      opts,
	}
}

// Ask answers a question using RAG.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	// A blank question gets the fixed reply whatever k it carries.
	question := strings.TrimSpace(req.Question)
	if question == "" {
		metrics.QueryOutcomes.WithLabelValues(string(OutcomeEmptyQuestion)).Inc()
		return AskResponse{
			Answer:  EmptyQuestionText,
			Sources: map[int]string{},
			TopK:    e.opts.TopK,
			Outcome: OutcomeEmptyQuestion,
		}, nil
	}

	k := e.opts.TopK
	if req.K != 0 {
		if req.K < 0 || req.K > MaxK {
			return AskResponse{}, fmt.Errorf("k must be between 1 and %d, got %d", MaxK, req.K)
		}
		k = req.K
	}

	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "RAG query started", "question", question, "k", k)
	start := time.Now()

	resp := AskResponse{TopK: k, Sources: map[int]string{}}
	if req.Debug {
		resp.Debug = &DebugInfo{RetrievedChunks: []RetrievedChunk{}}
	}

	err := e.answer(ctx, question, k, &resp)
	switch {
	case err == nil:
		resp.Outcome = OutcomeAccepted
	case errors.Is(err, errModelRefused):
		// resp.Answer already holds the model's own refusal.
		resp.Outcome = OutcomeRefused
	case errors.Is(err, ErrRetrieval):
		resp.Answer, resp.Outcome, resp.Reason = RetrievalFailedText, OutcomeFailed, ReasonRetrieval
	case errors.Is(err, ErrGeneration):
		resp.Answer, resp.Outcome, resp.Reason = GenerationFailedText, OutcomeFailed, ReasonGeneration
	case errors.Is(err, ErrNoEvidence), errors.Is(err, ErrGroundingViolation):
		resp.Answer, resp.Outcome = e.opts.RefusalText, OutcomeRefused
	default:
		// Anything unclassified is treated like a retrieval failure.
		resp.Answer, resp.Outcome, resp.Reason = RetrievalFailedText, OutcomeFailed, ReasonRetrieval
	}
	if resp.Outcome != OutcomeAccepted {
		resp.Sources = map[int]string{}
		resp.Docs = nil
	}

	metrics.QueryOutcomes.WithLabelValues(string(resp.Outcome)).Inc()
	metrics.ObserveStage("total", start)
	logger.InfoContext(ctx, "RAG query completed",
		"outcome", resp.Outcome,
		"reason", resp.Reason,
		"sources", len(resp.Sources),
		"duration", time.Since(start),
	)
	return resp, nil
}

// answer runs retrieval, generation and validation, filling resp as it goes.
// A nil error means the answer was accepted; a model refusal is reported as
// errModelRefused with resp.Answer already set to the model text.
func (e *ragEngine) answer(ctx context.Context, question string, k int, resp *AskResponse) error {
	logger := contextutil.LoggerFromContext(ctx)

	stageStart := time.Now()
	retrieved, err := e.retriever.Retrieve(ctx, question, k)
	metrics.ObserveStage("retrieve", stageStart)
	if err != nil {
		return err
	}
	if resp.Debug != nil {
		resp.Debug.RetrievedChunks = debugChunks(retrieved)
	}

	if len(retrieved) == 0 {
		logger.InfoContext(ctx, "no search results found")
		resp.Reason = ReasonNoEvidence
		return ErrNoEvidence
	}
	metrics.TopScore.Observe(float64(retrieved[0].Score))
	if retrieved[0].Score < e.opts.MinRelevance {
		logger.InfoContext(ctx, "top result below relevance floor", "top_score", retrieved[0].Score, "min_relevance", e.opts.MinRelevance)
		resp.Reason = ReasonBelowThreshold
		return fmt.Errorf("%w: top score %.3f below %.3f", ErrNoEvidence, retrieved[0].Score, e.opts.MinRelevance)
	}

	nc := AssembleContext(retrieved)
	if resp.Debug != nil {
		resp.Debug.References = nc.References
	}

	stageStart = time.Now()
	raw, err := e.generator.Generate(ctx, question, nc)
	metrics.ObserveStage("generate", stageStart)
	if err != nil {
		return err
	}
	if resp.Debug != nil {
		resp.Debug.RawAnswer = raw
	}

	stageStart = time.Now()
	result := Validate(raw, nc.References, e.opts.MaxAnswerChars)
	metrics.ObserveStage("validate", stageStart)

	switch {
	case result.Passthrough:
		resp.Answer = result.Text
		resp.Reason = ReasonModelRefusal
		return errModelRefused
	case !result.Accepted:
		metrics.ValidatorRejections.WithLabelValues(result.FailedCheck).Inc()
		logger.WarnContext(ctx, "answer rejected by validator", "check", result.FailedCheck)
		resp.Reason = "grounding_violation:" + result.FailedCheck
		return fmt.Errorf("%w: %s", ErrGroundingViolation, result.FailedCheck)
	}

	resp.Answer = result.Text
	resp.Sources = result.Sources
	resp.Docs = evidence(retrieved)
	return nil
}

func evidence(retrieved []Retrieved) []Evidence {
	docs := make([]Evidence, 0, len(retrieved))
	for _, r := range retrieved {
		docs = append(docs, Evidence{
			Source: r.Chunk.Source,
			Page:   r.Chunk.DisplayPage(),
			Text:   r.Chunk.Text,
		})
	}
	return docs
}

func debugChunks(retrieved []Retrieved) []RetrievedChunk {
	chunks := make([]RetrievedChunk, 0, len(retrieved))
	for i, r := range retrieved {
		chunks = append(chunks, RetrievedChunk{
			ChunkID:   r.Chunk.ID,
			Reference: r.Chunk.Reference(),
			Score:     r.Score,
			Rank:      i + 1,
			Text:      r.Chunk.Text,
		})
	}
	return chunks
}
