package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks policy-rag/internal/service Engine
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_query_service.go -package=mocks policy-rag/internal/service QueryService

import (
	"context"
	"strings"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/rag"
)

// Engine answers questions from the indexed corpus.
// This interface is defined from the service layer's perspective (consumer-first).
type Engine interface {
	Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error)
}

// QueryRequest represents a question in the domain layer.
type QueryRequest struct {
	Question string `validate:"required"`
	K        int    `validate:"omitempty,min=1,max=100"`
	Debug    bool
}

// QueryService answers questions for external callers.
type QueryService interface {
	// Ask validates the request and runs it through the query pipeline. Refused
	// and failed outcomes are responses, not errors.
	Ask(ctx context.Context, req QueryRequest) (rag.AskResponse, error)
}

// queryService implements QueryService.
type queryService struct {
	engine Engine
}

// NewQueryService creates a new QueryService.
func NewQueryService(engine Engine) QueryService {
	return &queryService{engine: engine}
}

// Ask rejects blank questions and out-of-range k before touching the pipeline.
func (s *queryService) Ask(ctx context.Context, req QueryRequest) (rag.AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	req.Question = strings.TrimSpace(req.Question)
	if err := validateRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid query request", "error", err)
		return rag.AskResponse{}, err
	}

	resp, err := s.engine.Ask(ctx, rag.AskRequest{
		Question: req.Question,
		K:        req.K,
		Debug:    req.Debug,
	})
	if err != nil {
		logger.WarnContext(ctx, "query rejected by engine", "error", err)
		return rag.AskResponse{}, &ValidationError{Field: "k", Message: err.Error()}
	}

	logger.InfoContext(ctx, "query processed", "question_length", len(req.Question), "outcome", resp.Outcome)
	return resp, nil
}
