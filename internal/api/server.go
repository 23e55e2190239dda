package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern-ai/lectern/internal/assistant"
	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
)

// Answerer is the assistant surface the API depends on.
type Answerer interface {
	Answer(ctx context.Context, query, sessionID string) (*assistant.Answer, error)
	Analytics(ctx context.Context) (knowledge.Analytics, error)
	Stats(ctx context.Context) (assistant.Stats, error)
}

// SessionStore covers the session mutations the API exposes directly.
type SessionStore interface {
	Clear(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Assistant   Answerer      // Required
	Sessions    SessionStore  // Required
	Pool        *pgxpool.Pool // Optional: nil skips the database probe in /ready
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("api: assistant is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("api: session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Config{})
	}

	qh := &queryHandler{assistant: cfg.Assistant, logger: logger}
	sh := &sessionHandler{store: cfg.Sessions, logger: logger}
	st := &statsHandler{assistant: cfg.Assistant, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", qh.answer)
	mux.HandleFunc("GET /api/v1/courses", st.getCourses)
	mux.HandleFunc("GET /api/v1/stats", st.getStats)
	mux.HandleFunc("POST /api/v1/sessions/{id}/clear", sh.clear)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery -> Logging -> CORS -> RateLimit -> Routes
	// CORS must come before RateLimit so preflight OPTIONS always gets its
	// headers, even for throttled clients.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// A top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
