// Package debug serves a read-only introspection surface for a running
// notebook session: cell state snapshots, a live event stream, and the
// engine's Prometheus metrics. It renders nothing and mutates nothing.
package debug

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/triblespace/gorbie/pkg/notebook"
)

// Server exposes one notebook session over HTTP.
type Server struct {
	nb       *notebook.Notebook
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	router   chi.Router
}

// Option configures the debug server.
type Option func(*Server)

// WithLogger sets the server logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer sets the Prometheus gatherer backing /metrics.
// Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer builds the introspection server for a notebook session.
//
// Routes:
//   - GET /cells   — JSON snapshot of every cell's state
//   - GET /events  — websocket stream of cell transitions
//   - GET /metrics — Prometheus exposition
func NewServer(nb *notebook.Notebook, opts ...Option) *Server {
	s := &Server{
		nb:       nb,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/cells", s.handleCells)
	r.Get("/events", s.handleEvents)
	r.Get("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// cellsResponse is the payload of GET /cells.
type cellsResponse struct {
	Pass  uint64              `json:"pass"`
	Cells []notebook.CellInfo `json:"cells"`
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	resp := cellsResponse{
		Pass:  s.nb.Pass(),
		Cells: s.nb.Inspect(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("cells encode failed", "error", err)
	}
}
