// Package server exposes the query facade as a small JSON HTTP API for the
// dashboard frontend. Rendering, styling and UI state live entirely on the
// client; this layer only shuttles aggregation results.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/calgarydata/communityatlas/internal/aggregate"
)

// Server handles the dashboard API routes.
type Server struct {
	svc    *aggregate.Service
	logger *slog.Logger

	startedAt time.Time

	// Status tracking
	totalAggregations atomic.Int64
	totalSearches     atomic.Int64
	totalErrors       atomic.Int64
	activeRequests    atomic.Int32
}

// Status is the payload of GET /api/status.
type Status struct {
	UptimeSeconds     int64 `json:"uptime_seconds"`
	ActiveRequests    int   `json:"active_requests"`
	TotalAggregations int64 `json:"total_aggregations"`
	TotalSearches     int64 `json:"total_searches"`
	TotalErrors       int64 `json:"total_errors"`
}

// New creates the API server.
func New(svc *aggregate.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:       svc,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Routes returns the configured handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/communities", s.track(s.handleCommunities))
	mux.HandleFunc("GET /api/search", s.track(s.handleSearch))
	mux.HandleFunc("GET /api/rankings", s.track(s.handleRankings))
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) track(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.activeRequests.Add(1)
		defer s.activeRequests.Add(-1)
		h(w, r)
	}
}

// handleCommunities runs the full-city aggregation. May take seconds on a
// cold cache with large candidate sets.
func (s *Server) handleCommunities(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	results, err := s.svc.FullAggregation(r.Context())
	if err != nil {
		s.fail(w, r, "full aggregation failed", err)
		return
	}
	s.totalAggregations.Add(1)
	s.logger.Info("full aggregation served",
		"boundaries", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.writeJSON(w, http.StatusOK, results)
}

// handleSearch serves the interactive, keystroke-driven boundary search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := q.Get("q")
	dataset := q.Get("dataset")

	results, err := s.svc.Search(r.Context(), term, dataset)
	if err != nil {
		s.fail(w, r, "search failed", err)
		return
	}
	s.totalSearches.Add(1)
	s.writeJSON(w, http.StatusOK, results)
}

// handleRankings derives per-metric ranks from a full aggregation.
func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	results, err := s.svc.FullAggregation(r.Context())
	if err != nil {
		s.fail(w, r, "full aggregation failed", err)
		return
	}
	ordered, err := s.svc.Ordered(r.Context(), results)
	if err != nil {
		s.fail(w, r, "ordering failed", err)
		return
	}
	s.totalAggregations.Add(1)
	s.writeJSON(w, http.StatusOK, aggregate.Rankings(ordered))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, Status{
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		ActiveRequests:    int(s.activeRequests.Load()),
		TotalAggregations: s.totalAggregations.Load(),
		TotalSearches:     s.totalSearches.Load(),
		TotalErrors:       s.totalErrors.Load(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.totalErrors.Add(1)
	s.logger.Error(msg, "path", r.URL.Path, "error", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}
