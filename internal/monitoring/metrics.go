// Package monitoring collects request metrics and runs the health checks
// behind /health, /ready and /metrics.
package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Metrics struct {
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ns"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
}

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc reports a component's own counters, such as pool or cache stats.
type StatsFunc func() map[string]interface{}

// Monitor is shared by the router and whatever registers checks against it.
type Monitor struct {
	mu            sync.RWMutex
	metrics       Metrics
	totalDuration time.Duration

	checks       map[string]HealthCheckFunc
	stats        map[string]StatsFunc
	checkTimeout time.Duration
	now          func() time.Time
}

func New() *Monitor {
	return &Monitor{
		metrics: Metrics{
			StatusCodes: make(map[string]int64),
			Endpoints:   make(map[string]int64),
			StartTime:   time.Now(),
		},
		checks:       make(map[string]HealthCheckFunc),
		stats:        make(map[string]StatsFunc),
		checkTimeout: 5 * time.Second,
		now:          time.Now,
	}
}

func (m *Monitor) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := m.now()

		m.mu.Lock()
		m.metrics.ActiveRequests++
		m.mu.Unlock()

		c.Next()

		duration := m.now().Sub(start)
		statusCode := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()
		if c.FullPath() == "" {
			endpoint = c.Request.Method + " unmatched"
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.metrics.RequestCount++
		m.metrics.ActiveRequests--
		m.totalDuration += duration
		m.metrics.RequestDuration = m.totalDuration / time.Duration(m.metrics.RequestCount)
		m.metrics.LastRequest = m.now()
		if statusCode >= 400 {
			m.metrics.ErrorCount++
		}
		m.metrics.StatusCodes[http.StatusText(statusCode)]++
		m.metrics.Endpoints[endpoint]++
	}
}

// Snapshot returns a copy of the request metrics.
func (m *Monitor) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.metrics
	out.StatusCodes = make(map[string]int64, len(m.metrics.StatusCodes))
	out.Endpoints = make(map[string]int64, len(m.metrics.Endpoints))
	for k, v := range m.metrics.StatusCodes {
		out.StatusCodes[k] = v
	}
	for k, v := range m.metrics.Endpoints {
		out.Endpoints[k] = v
	}
	return out
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	NextGC       uint64 `json:"next_gc_mb"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func (m *Monitor) SystemMetrics() SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return SystemMetrics{
		Uptime: m.uptime().String(),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(ms.Alloc),
			TotalAlloc:   bToMb(ms.TotalAlloc),
			Sys:          bToMb(ms.Sys),
			NumGC:        ms.NumGC,
			NextGC:       bToMb(ms.NextGC),
			GCPauseTotal: time.Duration(ms.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func (m *Monitor) uptime() time.Duration {
	return m.now().Sub(m.metrics.StartTime).Round(time.Second)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// RegisterHealthCheck stores check; it runs on every health or readiness
// request.
func (m *Monitor) RegisterHealthCheck(name string, check HealthCheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

func (m *Monitor) RegisterStats(name string, stats StatsFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[name] = stats
}

// RunHealthChecks runs every registered check concurrently, each bounded by
// the check timeout.
func (m *Monitor) RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	m.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(m.checks))
	for name, fn := range m.checks {
		checks[name] = fn
	}
	m.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]HealthCheck, len(checks))
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn HealthCheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
			defer cancel()

			result := HealthCheck{Name: name, Status: "healthy", LastRun: m.now()}
			if err := fn(checkCtx); err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()
	return results
}

func healthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func (m *Monitor) componentStats() map[string]interface{} {
	m.mu.RLock()
	names := make([]string, 0, len(m.stats))
	for name := range m.stats {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		m.mu.RLock()
		fn := m.stats[name]
		m.mu.RUnlock()
		out[name] = fn()
	}
	return out
}

func (m *Monitor) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"application": m.Snapshot(),
			"system":      m.SystemMetrics(),
			"components":  m.componentStats(),
			"timestamp":   m.now(),
		})
	}
}

func (m *Monitor) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := m.RunHealthChecks(c.Request.Context())

		overallStatus, status := "healthy", http.StatusOK
		if !healthy(checks) {
			overallStatus, status = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": m.now(),
			"checks":    checks,
			"uptime":    m.uptime().String(),
		})
	}
}

func (m *Monitor) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthy(m.RunHealthChecks(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": m.now()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "timestamp": m.now()})
	}
}

func (m *Monitor) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": m.now(),
			"uptime":    m.uptime().String(),
		})
	}
}
