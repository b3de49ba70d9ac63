package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"policy-rag/internal/corpus"
	"policy-rag/internal/llm"
	rag_mocks "policy-rag/internal/rag/mocks"
	"policy-rag/internal/vectorstore"
	vectorstore_mocks "policy-rag/internal/vectorstore/mocks"
)

const (
	testCollection = "policies"
	testRefusal    = "I can only answer questions about the policy documents."
)

var queryVector = []float32{0.1, 0.2, 0.3}

func result(source string, page, index int, score float32, text string) vectorstore.SearchResult {
	chunk := corpus.Chunk{
		ID:       fmt.Sprintf("%s::p%d::c%03d", source, page+1, index),
		Index:    index,
		Text:     text,
		Metadata: corpus.Metadata{Source: source, Page: page},
	}
	return vectorstore.SearchResult{PointID: chunk.ID, Score: score, Meta: chunk.Payload()}
}

func testOptions() Options {
	return Options{
		Collection:     testCollection,
		TopK:           5,
		MinRelevance:   0.25,
		MaxAnswerChars: 2000,
		RefusalText:    testRefusal,
		Generation: GenerationOptions{
			MaxTokens:   512,
			Temperature: 0,
			Timeout:     time.Second,
		},
	}
}

type engineMocks struct {
	embedder *rag_mocks.MockEmbedder
	store    *vectorstore_mocks.MockVectorStore
	model    *rag_mocks.MockChatModel
}

func newTestEngine(t *testing.T, ctrl *gomock.Controller) (Engine, engineMocks) {
	t.Helper()
	m := engineMocks{
		embedder: rag_mocks.NewMockEmbedder(ctrl),
		store:    vectorstore_mocks.NewMockVectorStore(ctrl),
		model:    rag_mocks.NewMockChatModel(ctrl),
	}
	return NewEngine(m.embedder, m.store, m.model, testOptions()), m
}

func (m engineMocks) expectSearch(results []vectorstore.SearchResult, err error) {
	m.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{queryVector}, nil)
	m.store.EXPECT().Search(gomock.Any(), testCollection, queryVector, 5).Return(results, err)
}

func TestEngine_Ask_PolicyScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newTestEngine(t, ctrl)

	m.expectSearch([]vectorstore.SearchResult{
		result("policy.pdf", 1, 0, 0.82, "Employees get 20 vacation days."),
		result("handbook.md", 0, 0, 0.40, "The office opens at nine."),
	}, nil)

	raw := "Answer:\nEmployees get 20 vacation days [1].\n\nSources:\n[1] policy.pdf p.2\n\nDocuments:\npolicy.pdf"
	m.model.EXPECT().
		ChatWithMessages(gomock.Any(), gomock.Any(), llm.ChatParams{MaxTokens: 512, Temperature: 0}).
		DoAndReturn(func(ctx context.Context, messages []llm.Message, _ llm.ChatParams) (string, error) {
			if len(messages) != 2 || messages[0].Role != llm.RoleSystem || messages[1].Role != llm.RoleUser {
				t.Errorf("unexpected messages: %+v", messages)
			}
			user := messages[1].Content
			if !strings.Contains(user, "Question: How many vacation days?") {
				t.Errorf("user message missing question: %q", user)
			}
			if !strings.Contains(user, "[1] policy.pdf p.2\nEmployees get 20 vacation days.\n\n---\n\n[2] handbook.md p.1") {
				t.Errorf("user message missing numbered context: %q", user)
			}
			if _, ok := ctx.Deadline(); !ok {
				t.Error("model call should carry a deadline")
			}
			return "  " + raw + "\n", nil
		})

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "  How many vacation days?  "})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if resp.Outcome != OutcomeAccepted {
		t.Fatalf("Outcome = %q (reason %q), want accepted", resp.Outcome, resp.Reason)
	}
	if resp.Answer != raw {
		t.Errorf("Answer = %q, want %q", resp.Answer, raw)
	}
	if len(resp.Sources) != 1 || resp.Sources[1] != "policy.pdf p.2" {
		t.Errorf("Sources = %v", resp.Sources)
	}
	if len(resp.Docs) != 2 || resp.Docs[0] != (Evidence{Source: "policy.pdf", Page: 2, Text: "Employees get 20 vacation days."}) {
		t.Errorf("Docs = %+v", resp.Docs)
	}
	if resp.TopK != 5 {
		t.Errorf("TopK = %d, want 5", resp.TopK)
	}
	if resp.Debug != nil {
		t.Error("Debug should be nil unless requested")
	}
}

func TestEngine_Ask_Refusals(t *testing.T) {
	tests := []struct {
		name       string
		results    []vectorstore.SearchResult
		modelReply string // empty means the model must not be called
		wantAnswer string
		wantReason string
	}{
		{
			name:       "empty store",
			results:    nil,
			wantAnswer: testRefusal,
			wantReason: ReasonNoEvidence,
		},
		{
			name: "top result below threshold",
			results: []vectorstore.SearchResult{
				result("policy.pdf", 0, 0, 0.24, "Unrelated text."),
			},
			wantAnswer: testRefusal,
			wantReason: ReasonBelowThreshold,
		},
		{
			name: "hallucinated page",
			results: []vectorstore.SearchResult{
				result("policy.pdf", 1, 0, 0.9, "Employees get 20 vacation days."),
			},
			modelReply: "Answer:\nEmployees get 20 vacation days [1].\n\nSources:\n[1] policy.pdf p.3\n\nDocuments:\npolicy.pdf",
			wantAnswer: testRefusal,
			wantReason: "grounding_violation:" + CheckSourcesCanonical,
		},
		{
			name: "uncited answer",
			results: []vectorstore.SearchResult{
				result("policy.pdf", 1, 0, 0.9, "Employees get 20 vacation days."),
			},
			modelReply: "Employees get 20 vacation days.",
			wantAnswer: testRefusal,
			wantReason: "grounding_violation:" + CheckCitationsPresent,
		},
		{
			name: "model refuses",
			results: []vectorstore.SearchResult{
				result("policy.pdf", 1, 0, 0.9, "Employees get 20 vacation days."),
			},
			modelReply: "Answer:\nI cannot answer from the provided context.\n\nSources:\n(empty)",
			wantAnswer: "Answer:\nI cannot answer from the provided context.\n\nSources:\n(empty)",
			wantReason: ReasonModelRefusal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			engine, m := newTestEngine(t, ctrl)

			m.expectSearch(tt.results, nil)
			if tt.modelReply != "" {
				m.model.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.modelReply, nil)
			}

			resp, err := engine.Ask(context.Background(), AskRequest{Question: "How many vacation days?"})
			if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if resp.Outcome != OutcomeRefused {
				t.Errorf("Outcome = %q, want refused", resp.Outcome)
			}
			if resp.Answer != tt.wantAnswer {
				t.Errorf("Answer = %q, want %q", resp.Answer, tt.wantAnswer)
			}
			if resp.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", resp.Reason, tt.wantReason)
			}
			if len(resp.Sources) != 0 || resp.Sources == nil {
				t.Errorf("Sources = %v, want empty map", resp.Sources)
			}
			if resp.Docs != nil {
				t.Errorf("Docs = %+v, want nil", resp.Docs)
			}
		})
	}
}

func TestEngine_Ask_Failures(t *testing.T) {
	t.Run("embedding fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		engine, m := newTestEngine(t, ctrl)

		m.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

		resp, err := engine.Ask(context.Background(), AskRequest{Question: "q"})
		if err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
		if resp.Outcome != OutcomeFailed || resp.Answer != RetrievalFailedText || resp.Reason != ReasonRetrieval {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("store fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		engine, m := newTestEngine(t, ctrl)

		m.expectSearch(nil, errors.New("collection not found"))

		resp, err := engine.Ask(context.Background(), AskRequest{Question: "q"})
		if err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
		if resp.Outcome != OutcomeFailed || resp.Answer != RetrievalFailedText {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("model fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		engine, m := newTestEngine(t, ctrl)

		m.expectSearch([]vectorstore.SearchResult{result("policy.pdf", 0, 0, 0.9, "text")}, nil)
		m.model.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("429 rate limited"))

		resp, err := engine.Ask(context.Background(), AskRequest{Question: "q"})
		if err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
		if resp.Outcome != OutcomeFailed || resp.Answer != GenerationFailedText || resp.Reason != ReasonGeneration {
			t.Errorf("resp = %+v", resp)
		}
		if len(resp.Sources) != 0 {
			t.Errorf("Sources = %v, want empty", resp.Sources)
		}
	})
}

func TestEngine_Ask_BlankQuestion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, _ := newTestEngine(t, ctrl)

	tests := []AskRequest{
		{Question: ""},
		{Question: "   "},
		{Question: "\n\t"},
		{Question: " ", K: -1},
		{Question: "", K: MaxK + 1},
	}
	for _, req := range tests {
		resp, err := engine.Ask(context.Background(), req)
		if err != nil {
			t.Fatalf("Ask(%+v) error = %v", req, err)
		}
		if resp.Answer != EmptyQuestionText || resp.Outcome != OutcomeEmptyQuestion || len(resp.Sources) != 0 {
			t.Errorf("Ask(%+v) = %+v", req, resp)
		}
		if resp.TopK != testOptions().TopK {
			t.Errorf("Ask(%+v) TopK = %d, want %d", req, resp.TopK, testOptions().TopK)
		}
	}
}

func TestEngine_Ask_KOverride(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newTestEngine(t, ctrl)

	m.embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"q"}).Return([][]float32{queryVector}, nil)
	m.store.EXPECT().Search(gomock.Any(), testCollection, queryVector, 2).Return(nil, nil)

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "q", K: 2, Debug: true})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.TopK != 2 {
		t.Errorf("TopK = %d, want 2", resp.TopK)
	}
	if resp.Debug == nil || len(resp.Debug.RetrievedChunks) != 0 {
		t.Errorf("Debug = %+v, want empty retrieval info", resp.Debug)
	}

	for _, k := range []int{-1, MaxK + 1} {
		if _, err := engine.Ask(context.Background(), AskRequest{Question: "q", K: k}); err == nil {
			t.Errorf("Ask(K=%d) error = nil, want error", k)
		}
	}
}

func TestEngine_Ask_Debug(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newTestEngine(t, ctrl)

	m.expectSearch([]vectorstore.SearchResult{
		result("policy.pdf", 1, 0, 0.82, "Employees get 20 vacation days."),
	}, nil)
	m.model.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("Answer:\nX [1].\n\nSources:\n[1] policy.pdf p.9", nil)

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "q", Debug: true})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Debug == nil {
		t.Fatal("Debug should be set")
	}
	if len(resp.Debug.RetrievedChunks) != 1 {
		t.Fatalf("RetrievedChunks = %+v", resp.Debug.RetrievedChunks)
	}
	rc := resp.Debug.RetrievedChunks[0]
	if rc.Rank != 1 || rc.Reference != "policy.pdf p.2" || rc.ChunkID != "policy.pdf::p2::c000" {
		t.Errorf("RetrievedChunk = %+v", rc)
	}
	if resp.Debug.References[1] != "policy.pdf p.2" || !strings.Contains(resp.Debug.RawAnswer, "p.9") {
		t.Errorf("Debug = %+v", resp.Debug)
	}
}
