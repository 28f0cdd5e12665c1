// Package server exposes the generation pipeline over HTTP: generation,
// experiment management, and dashboard endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/audit"
	"github.com/draftsmith/genpipe/pkg/cache/exact"
	"github.com/draftsmith/genpipe/pkg/cache/semantic"
	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/orchestrator"
	"github.com/draftsmith/genpipe/pkg/registry"
)

// Server is the HTTP front of the pipeline.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	orch       *orchestrator.Orchestrator
	registry   *registry.Registry
	exactCache *exact.Cache
	semCache   *semantic.Cache
	engine     *experiment.Engine
	auditStore *audit.Store
	mux        *http.ServeMux
}

// New creates a Server wired with all dependencies. The caches and audit
// store may be nil when disabled.
func New(
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	reg *registry.Registry,
	exactCache *exact.Cache,
	semCache *semantic.Cache,
	engine *experiment.Engine,
	auditStore *audit.Store,
	logger *zap.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		orch:       orch,
		registry:   reg,
		exactCache: exactCache,
		semCache:   semCache,
		engine:     engine,
		auditStore: auditStore,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/generate", s.handleGenerate)
	s.mux.HandleFunc("/v1/experiments", s.handleExperiments)
	s.mux.HandleFunc("/v1/experiments/", s.handleExperimentByID)
	s.mux.HandleFunc("/v1/providers/health", s.handleProviderHealth)
	s.mux.HandleFunc("/v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("/v1/audit/recent", s.handleAuditRecent)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("genpipe listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Category == "" {
		req.Category = "generic"
	}

	res := s.orch.Generate(r.Context(), req)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"summary": s.engine.Summary(),
			"active":  s.engine.ListActive(),
		})
	case http.MethodPost:
		var exp models.Experiment
		if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := s.engine.Create(exp)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleExperimentByID routes /v1/experiments/{id}/analyze and
// /v1/experiments/{id}/stop.
func (s *Server) handleExperimentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/experiments/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	if id == "" {
		writeJSONError(w, http.StatusNotFound, "experiment id required")
		return
	}

	switch {
	case action == "analyze" && r.Method == http.MethodGet:
		res, err := s.engine.Analyze(id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	case action == "stop" && r.Method == http.MethodPost:
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Reason == "" {
			body.Reason = "manual stop"
		}
		if err := s.engine.Stop(id, body.Reason); err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	default:
		writeJSONError(w, http.StatusNotFound, "unknown experiment action")
	}
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Health())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := map[string]any{}
	if s.exactCache != nil {
		out["exact"] = s.exactCache.Stats()
	}
	if s.semCache != nil {
		out["semantic"] = s.semCache.Stats()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.auditStore == nil {
		writeJSONError(w, http.StatusNotFound, "audit store disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.auditStore.Recent(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, code)
}
