package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"go.uber.org/mock/gomock"

	"policy-rag/internal/rag"
	"policy-rag/internal/service"
	"policy-rag/internal/service/mocks"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestQueryService_Ask(t *testing.T) {
	accepted := rag.AskResponse{
		Answer:  "Answer:\nEmployees get 20 vacation days [1].\n\nSources:\n[1] policy.pdf p.2",
		Sources: map[int]string{1: "policy.pdf p.2"},
		TopK:    5,
		Outcome: rag.OutcomeAccepted,
	}

	tests := []struct {
		name      string
		req       service.QueryRequest
		mockSetup func(m *mocks.MockEngine)
		want      rag.AskResponse
		wantField string
	}{
		{
			name: "accepted answer",
			req:  service.QueryRequest{Question: "  How many vacation days?\n"},
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().
					Ask(gomock.Any(), rag.AskRequest{Question: "How many vacation days?"}).
					Return(accepted, nil)
			},
			want: accepted,
		},
		{
			name: "refusal is not an error",
			req:  service.QueryRequest{Question: "Who won the match?", K: 3, Debug: true},
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().
					Ask(gomock.Any(), rag.AskRequest{Question: "Who won the match?", K: 3, Debug: true}).
					Return(rag.AskResponse{Answer: "refused", Outcome: rag.OutcomeRefused, Sources: map[int]string{}}, nil)
			},
			want: rag.AskResponse{Answer: "refused", Outcome: rag.OutcomeRefused, Sources: map[int]string{}},
		},
		{
			name:      "blank question",
			req:       service.QueryRequest{Question: "   "},
			mockSetup: func(m *mocks.MockEngine) {},
			wantField: "question",
		},
		{
			name:      "k out of range",
			req:       service.QueryRequest{Question: "q", K: 500},
			mockSetup: func(m *mocks.MockEngine) {},
			wantField: "k",
		},
		{
			name: "engine rejects request",
			req:  service.QueryRequest{Question: "q", K: 7},
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(rag.AskResponse{}, errors.New("k must be between 1 and 5"))
			},
			wantField: "k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			engine := mocks.NewMockEngine(ctrl)
			tt.mockSetup(engine)
			svc := service.NewQueryService(engine)

			got, err := svc.Ask(context.Background(), tt.req)
			if tt.wantField != "" {
				var verr *service.ValidationError
				if !errors.As(err, &verr) || verr.Field != tt.wantField {
					t.Fatalf("Ask() error = %v, want ValidationError on %s", err, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("Ask() unexpected error: %v", err)
			}
			if got.Answer != tt.want.Answer || got.Outcome != tt.want.Outcome || len(got.Sources) != len(tt.want.Sources) {
				t.Errorf("Ask() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
