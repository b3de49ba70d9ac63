package handlers

import (
	"context"
	"net/http"
	"time"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/service"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	statusService      service.StatusService
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(statusService service.StatusService) *HealthHandler {
	return &HealthHandler{
		statusService:      statusService,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "ok", "degraded" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// Index summary, present when the vector store answered
	Index *IndexSummary `json:"index,omitempty"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// IndexSummary describes the stored collection and the latest ingestion run.
//
// swagger:model IndexSummary
type IndexSummary struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
	Points     int    `json:"points"`
	Sources    int    `json:"sources"`
	LastRunID  string `json:"last_run_id,omitempty"`
	LastRunAt  string `json:"last_run_at,omitempty"`
	LastStatus string `json:"last_run_status,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /health healthCheck
//
// Returns 200 when the vector store is reachable and 503 otherwise. An empty
// index is reported as degraded but still answers 200, since queries then
// return the refusal text.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]string{},
	}

	status, err := h.statusService.Status(checkCtx)
	if err != nil {
		logger.WarnContext(ctx, "index health check failed", "error", err)
		response.Status = "unhealthy"
		response.Checks["vector_store"] = "error"
		response.Issues = append(response.Issues, "vector_store_unavailable")
		writeJSON(ctx, w, http.StatusServiceUnavailable, response)
		return
	}

	response.Checks["vector_store"] = "ok"
	response.Index = &IndexSummary{
		Backend:    status.Backend,
		Collection: status.Collection,
		Points:     status.Points,
		Sources:    len(status.Sources),
	}
	if run := status.LatestRun; run != nil {
		response.Index.LastRunID = run.ID
		response.Index.LastRunAt = run.StartedAt.UTC().Format(time.RFC3339)
		response.Index.LastStatus = run.Status
	}
	if status.Points == 0 {
		response.Status = "degraded"
		response.Checks["index"] = "empty"
		response.Issues = append(response.Issues, "index_empty")
	} else {
		response.Checks["index"] = "ok"
	}

	writeJSON(ctx, w, http.StatusOK, response)
}
