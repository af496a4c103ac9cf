package handlers

import (
	"database/sql"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/eventlog/internal/metrics"
	"example.com/backstage/services/eventlog/internal/tracing"
)

// PoolStats reports connection pool statistics
type PoolStats interface {
	Stats() sql.DBStats
}

// MetricsHandler serves the operational endpoints of the service
type MetricsHandler struct {
	metrics *metrics.Metrics
	tracer  tracing.Tracer
	pool    PoolStats
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics *metrics.Metrics, tracer tracing.Tracer, pool PoolStats) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		tracer:  tracer,
		pool:    pool,
	}
}

// HandleGetMetrics returns all metrics
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	txn := h.tracer.StartTransaction("get-metrics")
	defer h.tracer.EndTransaction(txn)

	h.metrics.SetGauge("goroutines", int64(runtime.NumGoroutine()))

	c.JSON(http.StatusOK, h.metrics.GetAllMetrics())
}

// HandleGetHealthCheck returns a simplified health status
func (h *MetricsHandler) HandleGetHealthCheck(c *gin.Context) {
	healthChecks := h.metrics.GetHealthChecks()

	healthy := true
	for _, ok := range healthChecks {
		if !ok {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  healthy,
		"details": healthChecks,
	})
}

// HandleGetPoolStats returns the database connection pool statistics
func (h *MetricsHandler) HandleGetPoolStats(c *gin.Context) {
	if h.pool == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no connection pool"})
		return
	}

	stats := h.pool.Stats()
	c.JSON(http.StatusOK, gin.H{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	})
}

// RegisterRoutes registers the handler's routes
func (h *MetricsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", h.HandleGetMetrics)
	router.GET("/health", h.HandleGetHealthCheck)
	router.GET("/debug/pool", h.HandleGetPoolStats)
}
