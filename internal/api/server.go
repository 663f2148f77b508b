package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/plexschedule/internal/api/handlers"
	"github.com/amaumene/plexschedule/internal/api/middleware"
	"github.com/amaumene/plexschedule/internal/config"
	"github.com/amaumene/plexschedule/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	store   handlers.ActionLister
	runner  handlers.Runner
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, store handlers.ActionLister, runner handlers.Runner, m *metrics.Metrics, logger *logrus.Logger) *Server {
	s := &Server{
		store:   store,
		runner:  runner,
		metrics: m,
		logger:  logger,
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return middleware.Logging(mux, s.logger)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.Handle("/health", handlers.NewHealthHandler(s.logger))
	mux.Handle("/status", handlers.NewStatusHandler(s.store, s.logger))
	mux.Handle("/actions", handlers.NewActionsHandler(s.store, s.logger))

	// Manual trigger, shares the cron job's lock
	mux.Handle("/api/run", handlers.NewRunHandler(s.runner, s.logger))

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
