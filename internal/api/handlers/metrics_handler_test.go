package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/eventlog/internal/metrics"
	"example.com/backstage/services/eventlog/internal/tracing"
)

type fakePool struct {
	stats sql.DBStats
}

func (p fakePool) Stats() sql.DBStats {
	return p.stats
}

func newRouter(m *metrics.Metrics, pool PoolStats) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewMetricsHandler(m, tracing.Noop(), pool).RegisterRoutes(router)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	m := metrics.NewMetrics()
	router := newRouter(m, nil)

	m.SetHealth("database", true)
	w := get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	m.SetHealth("database", false)
	w = get(router, "/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status  bool            `json:"status"`
		Details map[string]bool `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Status)
	assert.Equal(t, map[string]bool{"database": false}, body.Details)
}

func TestGetMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	m.IncrementCounter("events.saved")
	router := newRouter(m, nil)

	w := get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "counters")
	assert.Contains(t, string(body["counters"]), `"events.saved":1`)
}

func TestGetPoolStats(t *testing.T) {
	router := newRouter(metrics.NewMetrics(), fakePool{stats: sql.DBStats{MaxOpenConnections: 16, InUse: 3, Idle: 2}})

	w := get(router, "/debug/pool")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(16), body["max_open_connections"])
	assert.Equal(t, int64(3), body["in_use"])
	assert.Equal(t, int64(2), body["idle"])
}

func TestGetPoolStatsWithoutPool(t *testing.T) {
	w := get(newRouter(metrics.NewMetrics(), nil), "/debug/pool")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
