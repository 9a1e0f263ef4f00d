// Package server exposes the gateway and task manager over HTTP: task
// CRUD under /v1/responses, a resumable SSE event stream per task, model
// catalog queries, and operational status endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/registry"
	"mercator-hq/ganymede/pkg/tasks"
)

// Server is the HTTP front end.
type Server struct {
	cfg     config.ServerConfig
	log     *slog.Logger
	gw      *gateway.Gateway
	reg     *registry.Registry
	manager *tasks.Manager
	promReg *prometheus.Registry

	httpServer   *http.Server
	mu           sync.Mutex
	running      bool
	shutdownOnce sync.Once
}

// New creates a server. promReg may be nil to disable the /metrics
// endpoint.
func New(cfg config.ServerConfig, gw *gateway.Gateway, reg *registry.Registry, manager *tasks.Manager, promReg *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		log:     logger.With("component", "server"),
		gw:      gw,
		reg:     reg,
		manager: manager,
		promReg: promReg,
	}
}

// Start binds the listener and serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.mu.Unlock()

	s.log.Info("starting server", "address", s.cfg.ListenAddress)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv == nil {
			return
		}
		s.log.Info("shutting down server")
		err = srv.Shutdown(ctx)
	})
	return err
}

// routes assembles the handler tree with logging and recovery middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/responses", s.handleCreateResponse)
	mux.HandleFunc("GET /v1/responses", s.handleListResponses)
	mux.HandleFunc("GET /v1/responses/{id}", s.handleRetrieveResponse)
	mux.HandleFunc("POST /v1/responses/{id}/cancel", s.handleCancelResponse)
	mux.HandleFunc("GET /v1/responses/{id}/stream", s.handleStreamResponse)

	mux.HandleFunc("GET /v1/models", s.handleListModels)
	mux.HandleFunc("GET /v1/models/{id}", s.handleModelInfo)

	mux.HandleFunc("GET /status/health", s.handleHealth)
	mux.HandleFunc("GET /status/breakers", s.handleBreakers)
	mux.HandleFunc("GET /status/metrics", s.handleMetrics)
	mux.HandleFunc("POST /status/metrics/reset", s.handleResetMetrics)
	mux.HandleFunc("POST /status/config", s.handleUpdateConfig)
	mux.HandleFunc("POST /status/cache/clear", s.handleClearCache)

	if s.promReg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	}

	return s.withRecovery(s.withLogging(mux))
}
