package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *Monitor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.MetricsMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/health", m.HealthHandler())
	r.GET("/ready", m.ReadinessHandler())
	r.GET("/live", m.LivenessHandler())
	r.GET("/metrics", m.MetricsHandler())
	return r
}

func serve(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMetricsMiddleware_Counts(t *testing.T) {
	m := New()
	r := newRouter(m)

	serve(r, "/ok")
	serve(r, "/ok")
	serve(r, "/fail")
	serve(r, "/nowhere")

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.RequestCount)
	assert.Equal(t, int64(2), snap.ErrorCount)
	assert.Equal(t, int64(0), snap.ActiveRequests)
	assert.Equal(t, int64(2), snap.Endpoints["GET /ok"])
	assert.Equal(t, int64(1), snap.Endpoints["GET unmatched"])
	assert.Equal(t, int64(2), snap.StatusCodes["OK"])

	snap.Endpoints["GET /ok"] = 100
	assert.Equal(t, int64(2), m.Snapshot().Endpoints["GET /ok"], "snapshot is a copy")
}

func TestHealthChecksRunOnEveryRequest(t *testing.T) {
	m := New()
	r := newRouter(m)

	var dbErr error
	calls := 0
	m.RegisterHealthCheck("database", func(ctx context.Context) error {
		calls++
		return dbErr
	})

	assert.Equal(t, http.StatusOK, serve(r, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/ready").Code)

	dbErr = errors.New("connection refused")
	w := serve(r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, "/ready").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/live").Code)

	assert.Equal(t, 4, calls)
}

func TestMetricsHandler_IncludesComponentStats(t *testing.T) {
	m := New()
	r := newRouter(m)
	m.RegisterStats("cache", func() map[string]interface{} {
		return map[string]interface{}{"hits": 3}
	})

	w := serve(r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Components map[string]map[string]int `json:"components"`
		System     SystemMetrics             `json:"system"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Components["cache"]["hits"])
	assert.NotEmpty(t, body.System.GoVersion)
}
