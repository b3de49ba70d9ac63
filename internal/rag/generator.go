package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_model.go -package=mocks policy-rag/internal/rag ChatModel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/llm"
)

// ChatModel is the generative model behind the answer generator.
type ChatModel interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// GenerationOptions bounds a single model call.
type GenerationOptions struct {
	Model       string // Empty uses the client's default
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration // Zero means no deadline beyond the caller's
}

// Generator asks the model to answer from a numbered context.
type Generator struct {
	model ChatModel
	opts  GenerationOptions
}

// NewGenerator creates a generator.
func NewGenerator(model ChatModel, opts GenerationOptions) *Generator {
	return &Generator{model: model, opts: opts}
}

// Generate returns the raw model answer with surrounding whitespace removed.
// Any model failure, including the timeout, wraps ErrGeneration.
func (g *Generator) Generate(ctx context.Context, question string, nc NumberedContext) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	raw, err := g.model.ChatWithMessages(ctx, BuildMessages(question, nc.Text), llm.ChatParams{
		Model:       g.opts.Model,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		logger.ErrorContext(ctx, "model call failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return strings.TrimSpace(raw), nil
}
