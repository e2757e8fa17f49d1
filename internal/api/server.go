// Package api exposes the widget and dashboard HTTP surface.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaydesk/relaydesk/internal/log"
)

// ServerConfig contains everything needed to build the HTTP server.
type ServerConfig struct {
	Logger      log.Logger
	Tenants     TenantFinder     // required
	Engine      ChatEngine       // required
	Ingestor    DocumentIngestor // optional: nil disables the documents API
	Recorder    TurnRecorder     // optional: nil disables transcripts
	Pool        *pgxpool.Pool    // optional: nil degrades /ready to liveness
	CORSOrigins []string
	TrustProxy  bool // honor X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int  // per-IP burst size (0 = default 60)
}

// Server is the HTTP server for the widget and dashboard APIs.
type Server struct {
	mux *http.ServeMux
}

// NewServer wires routes and middleware.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Tenants == nil {
		return nil, errors.New("tenant store is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("chat engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{tenants: cfg.Tenants, engine: cfg.Engine, recorder: cfg.Recorder, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/widget/{slug}/config", ch.config)
	mux.HandleFunc("POST /api/widget/{slug}/chat", ch.chat)

	if cfg.Ingestor != nil {
		dh := &documentsHandler{tenants: cfg.Tenants, ingestor: cfg.Ingestor, logger: logger}
		mux.HandleFunc("POST /api/tenants/{slug}/documents", dh.create)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery -> Logging -> CORS -> RateLimit -> Routes
	// CORS sits before RateLimit so preflight OPTIONS always gets headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
