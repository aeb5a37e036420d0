// Package api provides the status server used in daemon mode. It exposes
// Prometheus metrics, a health check and the last run summary.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/anstrom/shodan-notifier/internal/api/middleware"
	"github.com/anstrom/shodan-notifier/internal/logging"
	"github.com/anstrom/shodan-notifier/internal/metrics"
	"github.com/anstrom/shodan-notifier/internal/scheduler"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// StatusProvider reports scheduler state.
type StatusProvider interface {
	Status() scheduler.Status
}

// Config holds status server configuration.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server represents the status server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	status     StatusProvider
	metrics    *metrics.PrometheusMetrics
	logger     *logging.Logger
	startTime  time.Time

	mu       sync.RWMutex
	listener net.Listener
}

// New creates a new status server instance.
func New(cfg Config, status StatusProvider, pm *metrics.PrometheusMetrics, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	if pm == nil {
		pm = metrics.NewPrometheusMetrics()
	}

	server := &Server{
		router:    mux.NewRouter(),
		status:    status,
		metrics:   pm,
		logger:    logger.WithComponent("api"),
		startTime: time.Now(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.CompressHandler(server.router),
		ReadTimeout:       orDefault(cfg.ReadTimeout, defaultReadTimeout),
		ReadHeaderTimeout: orDefault(cfg.ReadTimeout, defaultReadTimeout),
		WriteTimeout:      orDefault(cfg.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:       orDefault(cfg.IdleTimeout, defaultIdleTimeout),
	}

	return server
}

// Start listens and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Starting status server", "address", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("status server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the status server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping status server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Status server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("Status server stopped")
	return nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetAddress returns the bound address once started, else the configured one.
func (s *Server) GetAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/liveness", s.livenessHandler).Methods(http.MethodGet)
	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)

	s.router.HandleFunc("/", s.indexHandler).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.SecurityHeaders())
}

// ErrorResponse represents a standard API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// HealthResponse is returned by /api/v1/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "shodan-notifier",
		"endpoints": map[string]string{
			"metrics":  "/metrics",
			"liveness": "/api/v1/liveness",
			"health":   "/api/v1/health",
			"status":   "/api/v1/status",
		},
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
	})
}

// healthHandler is unhealthy when the scheduler is not running and
// degraded when the last run failed.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
	}

	if s.status == nil {
		resp.Status = StatusUnhealthy
		resp.Checks["scheduler"] = "not configured"
	} else {
		st := s.status.Status()
		switch {
		case !st.Started:
			resp.Status = StatusUnhealthy
			resp.Checks["scheduler"] = "stopped"
		default:
			resp.Checks["scheduler"] = "ok"
		}

		if st.LastError != "" {
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
			resp.Checks["last_run"] = "failed: " + st.LastError
		} else if st.Runs > 0 {
			resp.Checks["last_run"] = "ok"
		} else {
			resp.Checks["last_run"] = "pending"
		}
	}

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("scheduler not configured"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "shodan-notifier",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
		"scheduler": s.status.Status(),
	})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, fmt.Errorf("endpoint not found: %s", r.URL.Path))
}

// writeError writes a standardized error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	s.logger.Warn("API error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"error", err)

	s.writeJSON(w, statusCode, ErrorResponse{
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
