package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/journal"
	"mercator-hq/limitr/pkg/limits"
	"mercator-hq/limitr/pkg/security/auth"
	"mercator-hq/limitr/pkg/server/middleware"
	"mercator-hq/limitr/pkg/telemetry/health"
	"mercator-hq/limitr/pkg/telemetry/metrics"
	"mercator-hq/limitr/pkg/telemetry/tracing"
)

// BuildInfo is reported by the /version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options wires a Server. Config and Manager are required.
type Options struct {
	Config  *config.Config
	Manager *limits.Manager

	// Journal enables GET /v1/journal when set.
	Journal journal.Store

	// Health defaults to an empty checker.
	Health *health.Checker

	// Metrics enables the metrics endpoint and HTTP metrics when set.
	Metrics *metrics.Collector

	// Tracer defaults to a noop tracer.
	Tracer *tracing.Tracer

	// TLSConfig switches the listener to HTTPS when set.
	TLSConfig *tls.Config

	// Auth requires an API key or token on /v1/ routes when set.
	Auth auth.Authenticator

	Logger    *slog.Logger
	BuildInfo BuildInfo
}

// Server is the limitr HTTP API server.
type Server struct {
	config  *config.Config
	manager *limits.Manager
	journal journal.Store
	health  *health.Checker
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	tls     *tls.Config
	auth    auth.Authenticator
	build   BuildInfo

	// baseLogger is handed to middleware, which adds its own component.
	baseLogger *slog.Logger
	logger     *slog.Logger

	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server. It does not start listening.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if opts.Manager == nil {
		return nil, errors.New("server: limiter manager is required")
	}
	if name := opts.Config.Server.Limiter; name != "" {
		if _, ok := opts.Manager.Limiter(name); !ok {
			return nil, fmt.Errorf("server: guard %w: %q", limits.ErrUnknownLimiter, name)
		}
	}
	if opts.Auth != nil {
		for _, name := range opts.Auth.Limiters() {
			if _, ok := opts.Manager.Limiter(name); !ok {
				return nil, fmt.Errorf("server: client %w: %q", limits.ErrUnknownLimiter, name)
			}
		}
	}

	s := &Server{
		config:  opts.Config,
		manager: opts.Manager,
		journal: opts.Journal,
		health:  opts.Health,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		tls:     opts.TLSConfig,
		auth:    opts.Auth,
		build:   opts.BuildInfo,
	}
	if s.health == nil {
		s.health = health.New(opts.Config.Telemetry.Health.CheckTimeout)
	}
	if s.tracer == nil {
		s.tracer = tracing.Noop()
	}
	s.baseLogger = opts.Logger
	if s.baseLogger == nil {
		s.baseLogger = slog.Default()
	}
	s.logger = s.baseLogger.With("component", "server")
	return s, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	cfg := s.config.Server
	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		TLSConfig:      s.tls,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting limitr server",
			"address", ln.Addr().String(),
			"limiters", len(s.manager.Names()),
			"tls", s.tls != nil,
			"auth", s.auth != nil,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully stops the server, waiting at most the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		timeout := s.config.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("limitr server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	guard := func(h http.Handler) http.Handler { return h }
	if name := s.config.Server.Limiter; name != "" {
		guard = middleware.ManagedRateLimit(s.manager, name, s.baseLogger)
	}
	if s.auth != nil {
		limit := guard
		authenticate := auth.Middleware(s.auth, s.baseLogger)
		guard = func(h http.Handler) http.Handler {
			return limit(authenticate(s.clientLimit(h)))
		}
	}

	mux.Handle("POST /v1/limiters/{name}/consume", guard(http.HandlerFunc(s.handleConsume)))
	mux.Handle("GET /v1/limiters", guard(http.HandlerFunc(s.handleList)))
	mux.Handle("GET /v1/limiters/{name}", guard(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /v1/journal", guard(http.HandlerFunc(s.handleJournal)))

	tel := s.config.Telemetry
	mux.Handle(tel.Health.Path, s.health.Handler())
	mux.Handle("/version", health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	if s.metrics != nil && tel.Metrics.Enabled {
		mux.Handle(tel.Metrics.Path, s.metrics.Handler())
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = middleware.Metrics(s.metrics)(handler)
	}
	handler = s.tracer.Middleware(handler)
	handler = middleware.Logging(s.baseLogger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(s.baseLogger)(handler)

	return handler
}

// clientLimit consumes the authenticated client's own limiter before next.
// Clients that name the same limiter share its budget.
func (s *Server) clientLimit(next http.Handler) http.Handler {
	limited := make(map[string]http.Handler)
	for _, name := range s.auth.Limiters() {
		limited[name] = middleware.ManagedRateLimit(s.manager, name, s.baseLogger)(next)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := auth.ClientFromContext(r.Context()); ok {
			if h, ok := limited[c.Limiter]; ok {
				h.ServeHTTP(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
