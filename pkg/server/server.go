// Package server provides the HTTP server of the gateway.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"policyguard/gateway/pkg/arbiter/store"
	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/proxy"
	"policyguard/gateway/pkg/proxy/handlers"
	"policyguard/gateway/pkg/proxy/middleware"
	"policyguard/gateway/pkg/security/auth"
	certs "policyguard/gateway/pkg/security/tls"
	"policyguard/gateway/pkg/telemetry/health"
	"policyguard/gateway/pkg/telemetry/metrics"
	"policyguard/gateway/pkg/telemetry/tracing"
)

// Engine is the policy engine as seen by the server.
type Engine interface {
	proxy.Evaluator
	handlers.DirectEvaluator
	health.EngineState
}

// ProviderManager is the interface for managing LLM providers.
type ProviderManager interface {
	handlers.ProviderManager
	GetProviderNames() []string
}

// Dependencies are the components the server routes to. Engine, Store and
// Providers are required.
type Dependencies struct {
	Engine    Engine
	Store     store.Writer
	Providers ProviderManager

	// Evidence is optional; nil disables the audit trail.
	Evidence handlers.EvidenceRecorder

	// Metrics defaults to a collector on a private registry.
	Metrics *metrics.Collector

	// Tracer defaults to a noop tracer.
	Tracer *tracing.Tracer

	// Health defaults to a checker with the engine and store checks.
	Health *health.Checker

	// Admin authenticates the policy management routes. Nil leaves them
	// open.
	Admin *auth.Middleware

	Version health.VersionInfo
	Logger  *slog.Logger
}

// Server is the HTTP server of the gateway.
type Server struct {
	config       *config.ProxyConfig
	telemetry    *config.TelemetryConfig
	deps         Dependencies
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server. It does not listen until Start.
func NewServer(cfg *config.ProxyConfig, telemetry *config.TelemetryConfig, deps Dependencies) (*Server, error) {
	if cfg == nil || telemetry == nil {
		return nil, errors.New("server: proxy and telemetry configuration are required")
	}
	if deps.Engine == nil || deps.Store == nil || deps.Providers == nil {
		return nil, errors.New("server: engine, store and providers are required")
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector(telemetry.Metrics, nil)
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.NewNoop()
	}
	if deps.Health == nil {
		deps.Health = health.New(telemetry.Health.CheckTimeout)
		deps.Health.RegisterCheck("policy_engine", health.EngineCheck(deps.Engine))
		deps.Health.RegisterCheck("policy_store", health.ComponentCheck(deps.Store))
	}

	return &Server{
		config:       cfg,
		telemetry:    telemetry,
		deps:         deps,
		logger:       deps.Logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, a signal arrives, or Stop is
// called. It always shuts down gracefully before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	tlsEnabled := s.config.TLS.Enabled
	if tlsEnabled {
		tlsConfig, err := s.configureTLS(watchCtx)
		if err != nil {
			s.isRunning = false
			s.mu.Unlock()
			_ = ln.Close()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway",
			"address", ln.Addr().String(),
			"tls_enabled", tlsEnabled,
			"providers", s.deps.Providers.GetProviderNames(),
		)

		var err error
		if tlsEnabled {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Serve to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running, srv := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("gateway stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.TimeoutMiddleware(s.config.WriteTimeout)(handler)
	handler = middleware.BodyLimitMiddleware(s.config.MaxBodyBytes)(handler)
	handler = middleware.LoggingMiddleware(s.deps.Logger)(handler)
	handler = middleware.ScopeMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	guardCfg := proxy.GuardConfig{
		Upstream:     s.deps.Metrics,
		Tracer:       s.deps.Tracer,
		MaxBodyBytes: s.config.MaxBodyBytes,
		Logger:       s.deps.Logger,
	}
	if s.deps.Evidence != nil {
		guardCfg.Evidence = s.deps.Evidence
	}
	guard := proxy.NewGuard(s.deps.Engine, guardCfg)

	s.route(mux, "POST /v1/chat/completions", handlers.NewChatHandler(guard, s.deps.Providers))
	s.route(mux, "POST /v1beta/models/{action}", handlers.NewGenerateHandler(guard, s.deps.Providers))
	s.route(mux, "POST /v1/evaluate", handlers.NewEvaluateHandler(s.deps.Engine, s.deps.Evidence, s.config.MaxBodyBytes))

	policies := handlers.NewPolicyHandler(s.deps.Store, s.config.MaxBodyBytes)
	s.route(mux, "GET /v1/policies", s.admin(policies.List))
	s.route(mux, "POST /v1/policies", s.admin(policies.Create))
	s.route(mux, "GET /v1/policies/{id}", s.admin(policies.Get))
	s.route(mux, "PUT /v1/policies/{id}", s.admin(policies.Replace))
	s.route(mux, "DELETE /v1/policies/{id}", s.admin(policies.Delete))
	s.route(mux, "PATCH /v1/policies/{id}/toggle", s.admin(policies.Toggle))

	hc := s.telemetry.Health
	mux.Handle("GET "+pathOr(hc.LivenessPath, config.DefaultHealthLivenessPath), s.deps.Health.LivenessHandler())
	mux.Handle("GET "+pathOr(hc.ReadinessPath, config.DefaultHealthReadinessPath), s.deps.Health.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.deps.Version.Version, s.deps.Version.Commit, s.deps.Version.BuildTime))

	if mc := s.telemetry.Metrics; mc.Enabled {
		mux.Handle("GET "+pathOr(mc.Path, config.DefaultMetricsPath), s.deps.Metrics.Handler())
	}
}

// route registers an API route with per-route metrics and a server span,
// both named after the pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	h = middleware.MetricsMiddleware(pattern, s.deps.Metrics)(h)
	mux.Handle(pattern, s.deps.Tracer.HTTPMiddleware(pattern, h))
}

// admin guards a management handler with admin key authentication.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	if s.deps.Admin == nil {
		return h
	}
	return s.deps.Admin.Handle(h)
}

func pathOr(path, def string) string {
	if path == "" {
		return def
	}
	return path
}

// configureTLS loads the serving certificate and keeps it fresh until ctx
// is done.
func (s *Server) configureTLS(ctx context.Context) (*tls.Config, error) {
	if s.config.TLS.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if s.config.TLS.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}

	reloader := certs.NewCertificateReloader(s.config.TLS.CertFile, s.config.TLS.KeyFile, s.logger)
	if err := reloader.Load(); err != nil {
		return nil, err
	}
	go func() {
		if err := reloader.Watch(ctx); err != nil {
			s.logger.Error("certificate watcher stopped", "error", err)
		}
	}()

	return &tls.Config{
		MinVersion:     tls.VersionTLS13,
		GetCertificate: reloader.GetCertificate,
	}, nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
