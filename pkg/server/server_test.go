package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/cache/exact"
	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/dispatch"
	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/orchestrator"
	"github.com/draftsmith/genpipe/pkg/provider"
	"github.com/draftsmith/genpipe/pkg/registry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Providers = []config.ProviderConfig{
		{Name: "echo", Type: "static", Enabled: true, Priority: 1},
	}
	cfg.Dispatch.BaseBackoff = time.Millisecond
	cfg.Semantic.SnapshotPath = ""
	cfg.Experiments.SnapshotPath = ""

	logger := zap.NewNop()
	reg := registry.New(cfg.Dispatch.FailureCeiling, logger)
	disp := dispatch.New(reg, cfg.Dispatch, logger)
	engine := experiment.New(cfg.Experiments, logger)
	exactCache := exact.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	gens := provider.Build(t.Context(), cfg.Providers, logger)

	orch := orchestrator.New(cfg, reg, disp, gens, exactCache, nil, engine, nil, logger)
	t.Cleanup(orch.Close)

	return New(cfg, orch, reg, exactCache, nil, engine, nil, logger)
}

func TestHandleGenerate(t *testing.T) {
	s := newTestServer(t)

	body := `{"category":"cover_letter","subject_id":"user-1","prompt":"write a cover letter"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var res models.GenerationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Provider != "echo" {
		t.Errorf("provider = %q, want echo", res.Provider)
	}
	if res.Content == "" {
		t.Error("content should not be empty")
	}
	if len(res.Trace) == 0 {
		t.Error("trace should not be empty")
	}
}

func TestHandleGenerateValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"blank prompt", `{"prompt":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/generate", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestExperimentLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	create := `{
		"id": "cover_letter_optimization",
		"name": "Cover Letter Optimization",
		"variants": ["control", "treatment"],
		"traffic_split": {"control": 0.5, "treatment": 0.5},
		"target_metric": "quality_score"
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/experiments", strings.NewReader(create))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/experiments", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cover_letter_optimization") {
		t.Error("active list should contain the new experiment")
	}

	// Generate a few events so analyze has data.
	for i := 0; i < 3; i++ {
		body := `{"category":"cover_letter","subject_id":"user-` + string(rune('a'+i)) + `","prompt":"write a cover letter"}`
		genReq := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
		genRec := httptest.NewRecorder()
		s.ServeHTTP(genRec, genReq)
		if genRec.Code != http.StatusOK {
			t.Fatalf("generate status = %d", genRec.Code)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/experiments/cover_letter_optimization/analyze", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/experiments/cover_letter_optimization/stop",
		strings.NewReader(`{"reason":"test done"}`))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/experiments/never-created/analyze", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("analyze unknown status = %d, want 404", rec.Code)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/v1/providers/health", "/v1/cache/stats", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s content type = %q", path, ct)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/recent", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("audit without store status = %d, want 404", rec.Code)
	}
}
