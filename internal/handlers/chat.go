package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/rag"
	"policy-rag/internal/service"
)

// ChatHandler handles HTTP requests for questions about the policy corpus.
type ChatHandler struct {
	queryService service.QueryService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(queryService service.QueryService) *ChatHandler {
	return &ChatHandler{queryService: queryService}
}

// ChatRequest represents the HTTP request payload for a question.
//
// swagger:model ChatRequest
type ChatRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// ChatResponse represents the HTTP response payload for a question.
// Refused and failed outcomes are ordinary 200 responses.
//
// swagger:model ChatResponse
type ChatResponse struct {
	Answer string `json:"answer"`
	// Sources maps citation numbers to "{source} p.{page}"; empty unless the answer was accepted.
	Sources map[int]string `json:"sources"`
	Docs    []rag.Evidence `json:"docs"`
	TopK    int            `json:"top_k"`
	// Outcome is one of accepted, refused, failed.
	Outcome string         `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
	Debug   *rag.DebugInfo `json:"debug,omitempty"`
}

// ServeHTTP answers a question.
//
// swagger:route POST /chat askQuestion
//
// # Ask a question about the policy corpus
//
// Use the `debug=true` query parameter to include the retrieved chunks,
// the numbered references and the raw model output.
//
// responses:
//
//	'200':
//	  description: Answer, or the refusal or failure text
//	  schema:
//	    "$ref": "#/definitions/ChatResponse"
//	'400':
//	  description: Missing question or invalid k
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'500':
//	  description: Internal server error
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	debug := false
	if debugParam := r.URL.Query().Get("debug"); debugParam != "" {
		debug = strings.EqualFold(debugParam, "true") || debugParam == "1"
	}

	resp, err := h.queryService.Ask(ctx, service.QueryRequest{
		Question: req.Question,
		K:        req.K,
		Debug:    debug,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Internal server error")
		return
	}

	docs := resp.Docs
	if docs == nil {
		docs = []rag.Evidence{}
	}
	sources := resp.Sources
	if sources == nil {
		sources = map[int]string{}
	}
	writeJSON(ctx, w, http.StatusOK, ChatResponse{
		Answer:  resp.Answer,
		Sources: sources,
		Docs:    docs,
		TopK:    resp.TopK,
		Outcome: string(resp.Outcome),
		Reason:  resp.Reason,
		Debug:   resp.Debug,
	})
}
