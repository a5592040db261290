package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"agentsplatform/internal/api/health"
	"agentsplatform/internal/api/rest"
	"agentsplatform/internal/api/webhooks"
	"agentsplatform/internal/metrics"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port         int
	ServiceName  string
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter builds the route table. webhooks may be nil when no platform is configured.
func NewRouter(cfg ServerConfig, healthHandler *health.Handler, apiHandler *rest.Handler, webhookHandler *webhooks.Handler) http.Handler {
	mux := http.NewServeMux()

	healthHandler.Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	apiHandler.Register(mux)
	if webhookHandler != nil {
		webhookHandler.Register(mux)
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":%q,"version":%q,"status":"running"}`, cfg.ServiceName, cfg.Version)
	})

	return recoverMiddleware(mux)
}

// NewServer creates the HTTP server around handler
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	log := logger.Get().With("component", "http_server")

	port := 8000
	if cfg.Port > 0 {
		port = cfg.Port
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	log.Infof("HTTP server configured on port %d", port)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

// Start begins listening for HTTP requests.
// Blocks until server is stopped or encounters an error.
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}

func recoverMiddleware(next http.Handler) http.Handler {
	log := logger.Get().With("component", "http_server")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Errorw("Panic in HTTP handler", "panic", rec, "method", r.Method, "path", r.URL.Path)
				rest.WriteError(w, log, errors.Wrapf(errors.ErrInternal, "panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
