package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-rag/internal/config"
	"policy-rag/internal/indexer"
	"policy-rag/internal/rag"
)

const handbookAnswer = "Answer:\nEmployees get 20 vacation days per year [1].\n\nSources:\n[1] handbook.md p.1\n\nDocuments:\nhandbook.md"

// fakeChatServer answers every completion with content and records the last user prompt.
func fakeChatServer(t *testing.T, content string, lastPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
			*lastPrompt = req.Messages[len(req.Messages)-1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "test",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, llmURL string) config.Config {
	t.Helper()
	return config.Config{
		Seed:             42,
		PersistDir:       t.TempDir(),
		ContextDir:       t.TempDir(),
		ChunkSize:        1100,
		ChunkOverlap:     160,
		EmbedBatchSize:   16,
		EmbeddingBackend: "hashing",
		EmbeddingModel:   config.DefaultHashingModel,
		EmbeddingDim:     128,
		TopK:             5,
		MinRelevance:     0,
		MaxAnswerChars:   2000,
		RefusalText:      config.DefaultRefusalText,
		LLMBaseURL:       llmURL,
		LLMModelName:     "test-model",
		LLMMaxTokens:     256,
		LLMTimeout:       5 * time.Second,
		VectorBackend:    "local",
		QdrantCollection: "policies",
		Port:             "0",
		LogFormat:        "text",
	}
}

func TestApp_IngestAndAsk(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	var prompt string
	srv := fakeChatServer(t, handbookAnswer, &prompt)
	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ContextDir, "handbook.md"),
		[]byte("# Handbook\n\nEmployees get 20 vacation days per year.\n"), 0644))

	a, err := openApp(cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, a.checkEmbedder(ctx))

	pipeline, err := a.pipeline()
	require.NoError(t, err)
	report, err := pipeline.Ingest(ctx, cfg.ContextDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Documents)
	assert.Equal(t, 1, report.Stats.Chunks)

	resp, err := a.engine().Ask(ctx, rag.AskRequest{Question: "How many vacation days do employees get?"})
	require.NoError(t, err)
	assert.Equal(t, rag.OutcomeAccepted, resp.Outcome, "reason: %s", resp.Reason)
	assert.Equal(t, map[int]string{1: "handbook.md p.1"}, resp.Sources)
	assert.Equal(t, handbookAnswer, resp.Answer)
	assert.Contains(t, prompt, "[1] handbook.md p.1\n")

	var buf bytes.Buffer
	printAnswer(&buf, resp)
	assert.Contains(t, buf.String(), "[1] handbook.md p.1")

	status, err := a.statusService().Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Points)
	require.NotNil(t, status.LatestRun)
	assert.Equal(t, report.RunID, status.LatestRun.ID)

	buf.Reset()
	printStatus(&buf, status)
	assert.Contains(t, buf.String(), "Chunks:      1")
	assert.Contains(t, buf.String(), "embedder hashing/feature-hashing/128/seed=42")

	buf.Reset()
	printIngestReport(&buf, report)
	assert.Contains(t, buf.String(), "Documents:      1 (1 unique sources)")
}

func TestApp_QueryWithOtherSeedFailsFast(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	var prompt string
	srv := fakeChatServer(t, handbookAnswer, &prompt)
	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ContextDir, "handbook.md"),
		[]byte("Employees get 20 vacation days per year.\n"), 0644))

	a, err := openApp(cfg)
	require.NoError(t, err)
	pipeline, err := a.pipeline()
	require.NoError(t, err)
	_, err = pipeline.Ingest(ctx, cfg.ContextDir, false)
	require.NoError(t, err)
	require.NoError(t, a.checkIndex(ctx))
	require.NoError(t, a.Close())

	reseeded := cfg
	reseeded.Seed = 7
	b, err := openApp(reseeded)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	err = b.checkIndex(ctx)
	require.ErrorIs(t, err, indexer.ErrEmbedderMismatch)
	assert.Contains(t, err.Error(), "seed=42")
	assert.Contains(t, err.Error(), "seed=7")
	assert.Empty(t, prompt, "model should not be called")

	otherModel := cfg
	otherModel.EmbeddingBackend = "openai"
	otherModel.EmbeddingModel = config.DefaultRemoteModel
	c, err := openApp(otherModel)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.ErrorIs(t, c.checkIndex(ctx), indexer.ErrEmbedderMismatch)
}

func TestApp_HallucinatedSourceIsRefused(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	var prompt string
	srv := fakeChatServer(t, strings.Replace(handbookAnswer, "[1] handbook.md p.1", "[1] handbook.md p.2", 1), &prompt)
	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ContextDir, "handbook.md"),
		[]byte("Employees get 20 vacation days per year.\n"), 0644))

	a, err := openApp(cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	pipeline, err := a.pipeline()
	require.NoError(t, err)
	_, err = pipeline.Ingest(ctx, cfg.ContextDir, false)
	require.NoError(t, err)

	resp, err := a.engine().Ask(ctx, rag.AskRequest{Question: "How many vacation days?"})
	require.NoError(t, err)
	assert.Equal(t, rag.OutcomeRefused, resp.Outcome)
	assert.Equal(t, config.DefaultRefusalText, resp.Answer)
	assert.Empty(t, resp.Sources)
}

func TestApp_AskEmptyStore(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var prompt string
	srv := fakeChatServer(t, handbookAnswer, &prompt)
	a, err := openApp(testConfig(t, srv.URL))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	resp, err := a.engine().Ask(context.Background(), rag.AskRequest{Question: "Anything?"})
	require.NoError(t, err)
	assert.Equal(t, rag.OutcomeRefused, resp.Outcome)
	assert.Empty(t, prompt, "model should not be called without evidence")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, slog.LevelInfo, "json").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	newLogger(&buf, slog.LevelWarn, "text").Info("dropped")
	assert.Empty(t, buf.String())
}
