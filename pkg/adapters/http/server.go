// Package http exposes the engine as a JSON API on a chi router.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/guidance"
	"github.com/aretw0/guidance/internal/logging"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/runner"
)

// DefaultMaxIdle is used by the sweep route when max_idle is omitted.
const DefaultMaxIdle = 30 * time.Minute

// Engine defines what the HTTP API needs from the guided-workflow engine.
type Engine interface {
	Start(ctx context.Context, variant domain.Variant) (*domain.Instruction, error)
	Continue(ctx context.Context, sessionID string, in domain.Input) (*domain.Instruction, error)
	Cancel(ctx context.Context, sessionID string) error
	Inspect(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	Sweep(ctx context.Context, maxIdle time.Duration) ([]string, error)
	Variants() []domain.Variant
}

// Server holds the handlers of the API.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	Metrics http.Handler
	Logger  *slog.Logger
}

// Option configures the handler built by NewHandler.
type Option func(*Server)

// WithStreams attaches a StreamManager. Its Hooks must be registered on the
// engine for subscribers to receive events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics mounts h (usually promhttp.Handler) on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	Variant domain.Variant `json:"variant"`
}

// ContinueRequest is the body of POST /sessions/{id}/continue.
type ContinueRequest struct {
	Text   string         `json:"text,omitempty"`
	Report map[string]any `json:"report,omitempty"`
}

// SweepResponse is the body returned by POST /admin/sweep.
type SweepResponse struct {
	Evicted []string `json:"evicted"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		Logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/variants", s.ListVariants)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.StartSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.CancelSession)
			r.Post("/continue", s.ContinueSession)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	r.Post("/admin/sweep", s.Sweep)

	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "guidance-http",
		"version": strings.TrimSpace(guidance.Version),
	})
}

// ListVariants handles GET /variants.
func (s *Server) ListVariants(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"variants": s.Engine.Variants()})
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "", fmt.Errorf("invalid request body: %w", err))
		return
	}

	inst, err := s.Engine.Start(r.Context(), body.Variant)
	if err != nil {
		s.writeError(w, "", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, inst)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.Engine.Inspect(r.Context(), id)
	if err != nil {
		s.writeError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// ContinueSession handles POST /sessions/{id}/continue.
func (s *Server) ContinueSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body ContinueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, id, fmt.Errorf("invalid request body: %w", err))
		return
	}

	text, err := runner.SanitizeInput(body.Text)
	if err != nil {
		s.Logger.Warn("input rejected", "session_id", id, "error", err, "size", len(body.Text))
		s.badRequest(w, id, err)
		return
	}
	report, err := runner.SanitizeReport(body.Report)
	if err != nil {
		s.Logger.Warn("report rejected", "session_id", id, "error", err)
		s.badRequest(w, id, err)
		return
	}

	inst, err := s.Engine.Continue(r.Context(), id, domain.Input{Text: text, Report: report})
	if err != nil {
		s.writeError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// CancelSession handles DELETE /sessions/{id}.
func (s *Server) CancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.Cancel(r.Context(), id); err != nil {
		s.writeError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &domain.Instruction{
		Status:    domain.StatusCancelled,
		SessionID: id,
	})
}

// Sweep handles POST /admin/sweep?max_idle=30m.
func (s *Server) Sweep(w http.ResponseWriter, r *http.Request) {
	maxIdle := DefaultMaxIdle
	if raw := r.URL.Query().Get("max_idle"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			s.badRequest(w, "", fmt.Errorf("invalid max_idle %q", raw))
			return
		}
		maxIdle = d
	}

	evicted, err := s.Engine.Sweep(r.Context(), maxIdle)
	if err != nil {
		s.writeError(w, "", err)
		return
	}
	if evicted == nil {
		evicted = []string{}
	}
	s.writeJSON(w, http.StatusOK, SweepResponse{Evicted: evicted})
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
// The optional watch query keeps only the listed event types, e.g.
// ?watch=transition,escalation.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.Engine.Inspect(r.Context(), id); err != nil {
		s.writeError(w, id, err)
		return
	}

	var watch map[domain.EventType]bool
	if raw := r.URL.Query().Get("watch"); raw != "" {
		watch = make(map[domain.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			watch[domain.EventType(strings.TrimSpace(t))] = true
		}
	}

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Debug("SSE client subscribed", "session_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE client disconnected", "session_id", id)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if watch != nil && !watch[ev.Type] {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.Logger.Error("SSE event encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

// -- Helpers --

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionTerminated), errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownVariant),
		errors.Is(err, domain.ErrValidationFailed),
		errors.Is(err, runner.ErrInputTooLarge),
		errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) badRequest(w http.ResponseWriter, sessionID string, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorInstruction(sessionID, err))
}

func (s *Server) writeError(w http.ResponseWriter, sessionID string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.Logger.Error("request failed", "session_id", sessionID, "error", err)
	}
	s.writeJSON(w, code, errorInstruction(sessionID, err))
}

func errorInstruction(sessionID string, err error) *domain.Instruction {
	return &domain.Instruction{
		Status:    domain.StatusError,
		SessionID: sessionID,
		Message:   err.Error(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}
