package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/eventlog/config"
	"example.com/backstage/services/eventlog/internal/api/handlers"
	"example.com/backstage/services/eventlog/internal/metrics"
	"example.com/backstage/services/eventlog/internal/tracing"
)

// Server is the operational HTTP server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
	pool       handlers.PoolStats
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, m *metrics.Metrics, tracer tracing.Tracer, pool handlers.PoolStats) *Server {
	server := &Server{
		config:  cfg,
		metrics: m,
		tracer:  tracer,
		pool:    pool,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           server.router,
		ReadHeaderTimeout: cfg.Timeout,
	}

	return server
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), requestMetrics(s.metrics))
	if app := s.tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}

	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.tracer, s.pool)
	metricsHandler.RegisterRoutes(router)

	return router
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
