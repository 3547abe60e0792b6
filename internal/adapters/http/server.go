// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/sourcepole/qgis-interlis-plugin/internal/application"
	"github.com/sourcepole/qgis-interlis-plugin/internal/config"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/input"
)

// maxBodySize limits request bodies, which carry at most a mapping document.
const maxBodySize = 8 << 20

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	transform   input.TransformService
	registry    input.ModelRegistry
	health      input.HealthChecker
	syncService *application.SyncService
	metrics     MetricsMiddleware
	metricsPath string
	limiter     *rate.Limiter
	logger      *slog.Logger
	config      config.ServerConfig
}

// MetricsMiddleware exposes request metrics.
type MetricsMiddleware interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Option configures optional server parts.
type Option func(*Server)

// WithSyncService enables POST /api/v1/sync.
func WithSyncService(syncService *application.SyncService) Option {
	return func(s *Server) {
		s.syncService = syncService
	}
}

// WithMetrics records request metrics. A non-empty path also serves the
// metrics there.
func WithMetrics(metrics MetricsMiddleware, path string) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.metricsPath = path
	}
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg config.ServerConfig,
	transform input.TransformService,
	registry input.ModelRegistry,
	health input.HealthChecker,
	logger *slog.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		transform: transform,
		registry:  registry,
		health:    health,
		logger:    logger,
		config:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.Rate), cfg.RateLimit.Burst)
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet)
	api.HandleFunc("/models/{modelId}", s.handleGetModel).Methods(http.MethodGet)
	api.HandleFunc("/models/{modelId}/enums", s.handleEnums).Methods(http.MethodGet)
	api.HandleFunc("/models/{modelId}/enums.gml", s.handleEnumsGML).Methods(http.MethodGet)
	api.HandleFunc("/models/{modelId}/transfer", s.handleEmptyTransfer).Methods(http.MethodGet)
	api.HandleFunc("/models/{modelId}/config", s.handleGenerateConfig).Methods(http.MethodPost)
	api.HandleFunc("/models/{modelId}/vrt", s.handleGenerateVRT).Methods(http.MethodPost)
	api.HandleFunc("/vrt", s.handleVRTFromConfig).Methods(http.MethodPost)

	if s.syncService != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	}

	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleDocs).Methods(http.MethodGet)
	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// HTTPServer returns the underlying server, e.g. to serve TLS.
func (s *Server) HTTPServer() *http.Server {
	return s.server
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
			"request_id", RequestID(r.Context()),
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
				s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
