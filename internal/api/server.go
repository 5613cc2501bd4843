// Package api serves merges over HTTP: a JSON REST surface for merging,
// listing formats and browsing the run catalogue, plus a WebSocket feed of
// mismatches and completions.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/FocuswithJustin/JuniperScore/internal/cache"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
	"github.com/FocuswithJustin/JuniperScore/internal/pipeline"
	"github.com/FocuswithJustin/JuniperScore/internal/store"
)

// runCacheTTL bounds how long GET /runs/{id} serves a run from memory.
const runCacheTTL = 5 * time.Minute

// Server is the HTTP API. Create it with New, serve Handler or call
// ListenAndServe, and Close it when done.
type Server struct {
	cfg       Config
	pipeline  *pipeline.Pipeline
	hub       *Hub
	jobs      *JobStore
	limiter   *RateLimiter
	wsLimiter *WebSocketRateLimiter
	runCache  *cache.TTLCache[string, *store.Run]
	started   time.Time
	handler   http.Handler
}

// New validates cfg and builds a server around p, starting its WebSocket
// hub. A nil p merges without keeping blobs or runs.
func New(cfg Config, p *pipeline.Pipeline) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		for _, f := range []string{cfg.TLS.CertFile, cfg.TLS.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				return nil, fmt.Errorf("TLS file not found: %w", err)
			}
		}
	}
	if p == nil {
		p = &pipeline.Pipeline{}
	}
	if cfg.Scope != "" {
		p.Scope = cfg.Scope
	}

	s := &Server{
		cfg:       cfg,
		pipeline:  p,
		hub:       NewHub(),
		jobs:      NewJobStore(),
		wsLimiter: NewWebSocketRateLimiter(),
		runCache:  cache.New[string, *store.Run](runCacheTTL, 256),
		started:   time.Now(),
	}
	go s.hub.Run()
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}
	s.handler = s.buildHandler()
	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() *http.ServeMux {
	wsConfig := DefaultWebSocketSecurityConfig()
	wsConfig.AllowedOrigins = s.cfg.AllowedOrigins
	wsConfig.Auth = s.cfg.Auth

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/formats", s.handleFormats)
	mux.HandleFunc("/merge", s.handleMerge)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunByID)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/ws", WebSocketHandler(s.hub, wsConfig, s.wsLimiter))
	return mux
}

// buildHandler wraps the routes, innermost first: security headers, auth,
// rate limiting, CORS, then request IDs and logging.
func (s *Server) buildHandler() http.Handler {
	var handler http.Handler = SecurityHeaders(s.routes())

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api", "enabled", true)
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.limiter.config.BurstSize)
	}

	handler = CORSMiddleware(s.cfg.AllowedOrigins, handler)
	if len(s.cfg.AllowedOrigins) == 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins")
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(s.cfg.AllowedOrigins))
	}

	return logging.CombinedMiddleware(handler)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and closes the server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	protocol, wsProtocol := "http", "ws"
	if s.cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	port := 0
	if _, p, err := net.SplitHostPort(ln.Addr().String()); err == nil {
		port, _ = strconv.Atoi(p)
	}
	logging.ServerStartup("rest_api", protocol, port,
		"websocket_protocol", wsProtocol,
		"data_dir", s.cfg.DataDir)

	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled {
			errc <- srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			errc <- srv.Serve(ln)
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close cancels running jobs and stops the hub and rate limiter.
func (s *Server) Close() {
	s.jobs.Shutdown()
	s.hub.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
