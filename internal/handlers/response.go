package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/service"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// handleServiceError maps service errors to HTTP status codes. Internal error
// text is logged, never returned.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "request failed validation", "field", validationErr.Field, "error", err)
		if validationErr.Field == "question" {
			writeError(w, http.StatusBadRequest, "question is required")
			return
		}
		writeError(w, http.StatusBadRequest, validationErr.Field+" "+validationErr.Message)
		return
	}

	logger.ErrorContext(ctx, "service error", "error", err)
	if errors.Is(err, service.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, defaultMsg)
}
