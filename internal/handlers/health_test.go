package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"policy-rag/internal/service"
	"policy-rag/internal/service/mocks"
	"policy-rag/internal/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		status     service.IndexStatus
		err        error
		wantStatus int
		wantHealth string
	}{
		{
			name:   "healthy index",
			method: http.MethodGet,
			status: service.IndexStatus{
				Backend:    "local",
				Collection: "policies",
				Points:     42,
				Sources:    []storage.SourceRecord{{Source: "policy.pdf"}},
				LatestRun:  &storage.IngestRun{ID: "run-1", Status: storage.RunStatusCompleted, StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			},
			wantStatus: http.StatusOK,
			wantHealth: "ok",
		},
		{
			name:       "empty index is degraded",
			method:     http.MethodGet,
			status:     service.IndexStatus{Backend: "local", Collection: "policies"},
			wantStatus: http.StatusOK,
			wantHealth: "degraded",
		},
		{
			name:       "store unavailable",
			method:     http.MethodGet,
			err:        service.ErrUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
		{
			name:       "method not allowed",
			method:     http.MethodPost,
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := mocks.NewMockStatusService(ctrl)
			if tt.method == http.MethodGet {
				mockService.EXPECT().Status(gomock.Any()).Return(tt.status, tt.err)
			}

			w := httptest.NewRecorder()
			NewHealthHandler(mockService).ServeHTTP(w, httptest.NewRequest(tt.method, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("ServeHTTP() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantHealth == "" {
				return
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantHealth)
			}
			if tt.name == "healthy index" && (resp.Index == nil || resp.Index.Points != 42 || resp.Index.LastRunID != "run-1") {
				t.Errorf("index = %+v", resp.Index)
			}
		})
	}
}

func TestMetaHandlers(t *testing.T) {
	w := httptest.NewRecorder()
	Root(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var root RootResponse
	if err := json.NewDecoder(w.Body).Decode(&root); err != nil || !root.OK {
		t.Errorf("Root() = %+v, err %v", root, err)
	}

	w = httptest.NewRecorder()
	Version("1.2.3", "test")(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	var version VersionResponse
	if err := json.NewDecoder(w.Body).Decode(&version); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if version.Version != "1.2.3" || version.Environment != "test" {
		t.Errorf("Version() = %+v", version)
	}
}
