package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_status_service.go -package=mocks policy-rag/internal/service StatusService

import (
	"context"
	"errors"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/storage"
	"policy-rag/internal/vectorstore"
)

// IndexStatus describes what is currently indexed.
type IndexStatus struct {
	Backend    string
	Collection string
	Points     int
	Sources    []storage.SourceRecord
	// LatestRun is nil when nothing has been ingested yet.
	LatestRun *storage.IngestRun
}

// StatusService reports on the index.
type StatusService interface {
	Status(ctx context.Context) (IndexStatus, error)
}

type statusService struct {
	store      vectorstore.VectorStore
	runs       storage.RunStore
	sources    storage.SourceStore
	backend    string
	collection string
}

// NewStatusService creates a new StatusService.
func NewStatusService(store vectorstore.VectorStore, runs storage.RunStore, sources storage.SourceStore, backend, collection string) StatusService {
	return &statusService{
		store:      store,
		runs:       runs,
		sources:    sources,
		backend:    backend,
		collection: collection,
	}
}

// Status counts stored points and reads the ingest manifest. A store that cannot
// be counted yields ErrUnavailable.
func (s *statusService) Status(ctx context.Context) (IndexStatus, error) {
	logger := contextutil.LoggerFromContext(ctx)
	status := IndexStatus{Backend: s.backend, Collection: s.collection}

	points, err := s.store.Count(ctx, s.collection)
	if err != nil {
		logger.WarnContext(ctx, "failed to count stored points", "collection", s.collection, "error", err)
		return status, errors.Join(ErrUnavailable, WrapError(err, "failed to count stored points"))
	}
	status.Points = points

	run, err := s.runs.Latest(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return status, WrapError(err, "failed to read latest run")
	default:
		status.LatestRun = run
	}

	sources, err := s.sources.ListAll(ctx)
	if err != nil {
		return status, WrapError(err, "failed to list sources")
	}
	status.Sources = sources

	return status, nil
}
