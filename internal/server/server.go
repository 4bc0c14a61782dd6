// Package server exposes the command matcher and resolver over HTTP.
//
// Routes:
//
//	POST /v1/match     stateless match of text against caller candidates
//	POST /v1/resolve   one-shot resolution in a page and language context
//	GET  /v1/stream    WebSocket session (see [session.Session])
//	GET  /v1/sessions  open stream sessions
//	GET  /v1/misses    most frequent unresolved utterances from the journal
//	GET  /metrics      Prometheus scrape endpoint
//	GET  /healthz, /readyz
//
// Request and response bodies are JSON. Errors are reported as
// {"error": "..."} with a 4xx or 5xx status.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voicenav/internal/health"
	"github.com/MrWong99/voicenav/internal/journal"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Sessions opens and tracks stream sessions. *app.SessionManager implements it.
type Sessions interface {
	Open(ctx context.Context, sender session.Sender) (*session.Session, error)
	Close(ctx context.Context, id string)
	List() []session.Info
}

// MissLister reports frequent unresolved utterances. Every [journal.Store]
// implements it.
type MissLister interface {
	Misses(ctx context.Context, limit int) ([]journal.Miss, error)
}

// Config holds the dependencies of a [Server]. Resolver is required; the
// other collaborators disable their routes when nil.
type Config struct {
	Resolver session.Resolver
	Sessions Sessions
	Misses   MissLister
	Health   *health.Handler
	Metrics  *observe.Metrics

	// RequestTimeout bounds the non-streaming API routes. Zero disables it.
	RequestTimeout time.Duration

	// AllowedOrigins are host patterns accepted for cross-origin WebSocket
	// upgrades.
	AllowedOrigins []string
}

// Server is the voicenav HTTP API.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New builds the route table.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/match", s.timeout(http.HandlerFunc(s.handleMatch)))
	mux.Handle("POST /v1/resolve", s.timeout(http.HandlerFunc(s.handleResolve)))
	mux.Handle("GET /v1/misses", s.timeout(http.HandlerFunc(s.handleMisses)))
	if cfg.Sessions != nil {
		mux.HandleFunc("GET /v1/stream", s.handleStream)
		mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the root handler with telemetry middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// timeout bounds h by the configured request timeout. Stream routes are not
// wrapped: the timeout writer cannot be hijacked.
func (s *Server) timeout(h http.Handler) http.Handler {
	if s.cfg.RequestTimeout <= 0 {
		return h
	}
	return http.TimeoutHandler(h, s.cfg.RequestTimeout, `{"error":"request timed out"}`)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("server: write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a single JSON object from the body into v. Unknown fields
// are rejected so client typos surface as errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "invalid request body: "+err.Error())
		return false
	}
	return true
}
