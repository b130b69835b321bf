// Package health serves liveness, run status and prometheus metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/dispatch/internal/core/domain"
	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
)

// StatusSource exposes live counters.
type StatusSource interface {
	Snapshot() domain.Counters
}

// Report is the /status payload.
type Report struct {
	RunID     string                  `json:"run_id"`
	StartedAt time.Time               `json:"started_at"`
	Counters  domain.Counters         `json:"counters"`
	Endpoints []provider.HealthStatus `json:"endpoints"`
}

// CheckFunc probes a dependency; a non-nil error marks the run unhealthy.
type CheckFunc func(ctx context.Context) error

// Server provides HTTP endpoints for run monitoring.
type Server struct {
	runID     string
	startedAt time.Time
	status    StatusSource
	providers []provider.Provider
	checks    map[string]CheckFunc
	server    *http.Server
}

// NewServer creates a new health server.
func NewServer(port int, runID string, status StatusSource, providers []provider.Provider) *Server {
	mux := http.NewServeMux()
	s := &Server{
		runID:     runID,
		startedAt: time.Now(),
		status:    status,
		providers: providers,
		checks:    make(map[string]CheckFunc),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// AddCheck registers a dependency probe for /health. Call before Start.
func (s *Server) AddCheck(name string, fn CheckFunc) {
	s.checks[name] = fn
}

// Handler returns the request router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			response[name] = err.Error()
			response["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := Report{
		RunID:     s.runID,
		StartedAt: s.startedAt,
		Counters:  s.status.Snapshot(),
		Endpoints: make([]provider.HealthStatus, 0, len(s.providers)),
	}
	for _, p := range s.providers {
		report.Endpoints = append(report.Endpoints, p.GetHealth())
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
