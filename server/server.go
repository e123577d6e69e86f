// Package server exposes the workflow engine over HTTP: POST /run executes a
// workflow and returns its trace, GET /health answers liveness probes, and
// GET /metrics serves Prometheus exposition when a registry is provided.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/workflow-go/workflow"
)

// Server routes HTTP traffic to a workflow engine.
type Server struct {
	engine *workflow.Engine
	router chi.Router
}

// runRequest is the POST /run body.
type runRequest struct {
	Workflow *workflow.Workflow `json:"workflow"`
}

// New builds a server around engine. A nil registry disables /metrics.
func New(engine *workflow.Engine, reg *prometheus.Registry) *Server {
	s := &Server{engine: engine}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Post("/run", s.handleRun)
	r.Get("/health", s.handleHealth)
	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleRun executes a workflow. Execution failures are not HTTP failures:
// the trace always comes back 200 with per-node status, so the builder UI
// can show exactly which node broke. Only an undecodable body is a 400.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Workflow == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "request must carry a workflow"})
		return
	}
	result := s.engine.Run(r.Context(), req.Workflow)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
