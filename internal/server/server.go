// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides how the server starts and stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config.Config, *slog.Logger, the store (store.Open), the event publisher
//
// and passes them to New, which builds:
//
//	metrics.Metrics → SubscriptionService / HealthReporter → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place instead of reached for through package globals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/applysync/internal/config"
	"github.com/sakif/applysync/internal/events"
	"github.com/sakif/applysync/internal/handler"
	"github.com/sakif/applysync/internal/metrics"
	"github.com/sakif/applysync/internal/middleware"
	"github.com/sakif/applysync/internal/repository"
	"github.com/sakif/applysync/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the publisher once constructed. Run closes
// both after the listener has drained, so in-flight requests never see a
// closed store.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	store     repository.SubscriberRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
}

// New wires services, handlers, and routes around an already-open store.
// publisher may be events.NopPublisher{}.
func New(cfg *config.Config, logger *slog.Logger, store repository.SubscriberRepository, publisher events.Publisher) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     store,
		publisher: publisher,
		metrics:   metrics.New(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /           → API banner
// POST   /subscribe  → Subscribe an email (JSON)
// GET    /health     → Liveness + store connectivity (JSON)
// GET    /metrics    → Prometheus exposition
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts real client IP from proxy headers
//  3. Logger, Metrics: see the final status, including recovered panics
//  4. Recover: turns panics into a JSON 500
//  5. CORS: rejects foreign origins before any handler runs
func (s *Server) setupRoutes() {
	devMode := s.config.DevMode()

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.Recover(s.logger, devMode))
	s.router.Use(middleware.CORS(s.config.AllowedOrigins, s.logger))

	subscriptions := service.NewSubscriptionService(s.store, s.publisher, s.metrics, s.logger)
	subscribeHandler := handler.NewSubscribeHandler(subscriptions, s.logger, devMode)

	reporter := service.NewHealthReporter(s.store, service.DefaultHealthTimeout, s.metrics, s.logger)
	healthHandler := handler.NewHealthHandler(reporter)

	s.router.Get("/", handler.HandleRoot)
	s.router.Post("/subscribe", subscribeHandler.HandleSubscribe)
	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.MethodNotAllowed)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured port and serves until ctx is cancelled or
// the listener fails. See Serve.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		s.closeResources()
		return fmt.Errorf("listening on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to ShutdownTimeout for in-flight requests
//  3. Close the publisher (waits a bounded time for buffered events) and the store
//
// A cancelled ctx is a normal stop and returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.closeResources()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("environment", s.config.Environment),
		)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", slog.Duration("timeout", s.config.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

func (s *Server) closeResources() {
	s.publisher.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error("closing store", slog.String("error", err.Error()))
	}
}
