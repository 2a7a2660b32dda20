// Package http exposes the engine over a small JSON API built on chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/aretw0/wayfarer"
	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxUtteranceBytes bounds the size of an utterance accepted over HTTP.
const MaxUtteranceBytes = 4096

// Engine is the part of wayfarer.Engine the transport needs.
type Engine interface {
	RunTurn(ctx context.Context, utterance, sessionKey, profile string) (*domain.TurnResult, error)
	Route(ctx context.Context, utterance, sessionKey, profile string) (domain.RoutingDecision, error)
	Capabilities() []domain.CapabilityDescriptor
	Session(ctx context.Context, key string) (*domain.SessionSnapshot, error)
	ResetSession(ctx context.Context, key string) error
	ListSessions(ctx context.Context) ([]string, error)
}

// TurnRequest is the body of POST /turns and POST /route.
type TurnRequest struct {
	Utterance  string `json:"utterance"`
	SessionKey string `json:"session_key,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

// Server holds the handlers of the API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/turns", s.PostTurn)
	r.Post("/route", s.PostRoute)
	r.Get("/capabilities", s.GetCapabilities)
	r.Get("/sessions", s.ListSessions)
	r.Get("/sessions/{key}", s.GetSession)
	r.Delete("/sessions/{key}", s.DeleteSession)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
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

// PostTurn handles the POST /turns request.
func (s *Server) PostTurn(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}

	res, err := s.Engine.RunTurn(r.Context(), body.Utterance, body.SessionKey, body.Profile)
	if err != nil {
		s.fail(w, "RunTurn", err)
		return
	}

	if body.SessionKey != "" {
		if payload, err := json.Marshal(res); err == nil {
			s.Streams.Broadcast(body.SessionKey, string(payload))
		}
	}
	s.writeJSON(w, http.StatusOK, res)
}

// PostRoute handles the POST /route request.
func (s *Server) PostRoute(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}

	d, err := s.Engine.Route(r.Context(), body.Utterance, body.SessionKey, body.Profile)
	if err != nil {
		s.fail(w, "Route", err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

// GetCapabilities handles the GET /capabilities request.
func (s *Server) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.Capabilities())
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Engine.ListSessions(r.Context())
	if err != nil {
		s.fail(w, "ListSessions", err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, keys)
}

// GetSession handles the GET /sessions/{key} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.Session(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, "Session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// DeleteSession handles the DELETE /sessions/{key} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.ResetSession(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.fail(w, "ResetSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":          "wayfarer-http",
		"version":      strings.TrimSpace(wayfarer.Version),
		"capabilities": len(s.Engine.Capabilities()),
	})
}

func (s *Server) decodeTurn(w http.ResponseWriter, r *http.Request) (TurnRequest, bool) {
	var body TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4*MaxUtteranceBytes)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		return body, false
	}

	clean, err := SanitizeUtterance(body.Utterance)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid utterance: %v", err), http.StatusBadRequest)
		s.logger.Warn("Utterance rejected", "err", err, "size", len(body.Utterance))
		return body, false
	}
	body.Utterance = clean
	return body, true
}

// SanitizeUtterance drops control characters other than newlines and tabs,
// and rejects utterances over MaxUtteranceBytes.
func SanitizeUtterance(s string) (string, error) {
	if len(s) > MaxUtteranceBytes {
		return "", fmt.Errorf("utterance exceeds %d bytes", MaxUtteranceBytes)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s), nil
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var storeErr *domain.StoreError
	switch {
	case errors.Is(err, domain.ErrUnknownProfile):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &storeErr):
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusServiceUnavailable)
		s.logger.Error(op+" failed", "err", err)
	default:
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
		s.logger.Error(op+" failed", "err", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
