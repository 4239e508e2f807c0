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

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type Metrics struct {
	RequestCount    int64            `json:"request_count"`
	AvgDurationMs   float64          `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	RateLimited     int64            `json:"rate_limited"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDurationNs int64
}

type HealthCheck struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Critical bool          `json:"critical"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	LastRun  time.Time     `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

type registeredCheck struct {
	fn       HealthCheckFunc
	critical bool
}

// Registry owns request metrics, health checks and extra stats published
// on /metrics. One Registry is built per server.
type Registry struct {
	mu      sync.Mutex
	metrics Metrics

	checksMu     sync.RWMutex
	checks       map[string]registeredCheck
	stats        map[string]func() interface{}
	checkTimeout time.Duration
}

func NewRegistry() *Registry {
	return &Registry{
		metrics: Metrics{
			StatusCodes: make(map[string]int64),
			Endpoints:   make(map[string]int64),
			StartTime:   time.Now(),
		},
		checks:       make(map[string]registeredCheck),
		stats:        make(map[string]func() interface{}),
		checkTimeout: 3 * time.Second,
	}
}

// RegisterHealthCheck adds a named check. A failing critical check makes
// the service unready; a failing non-critical one only degrades /health.
func (r *Registry) RegisterHealthCheck(name string, critical bool, fn HealthCheckFunc) {
	r.checksMu.Lock()
	defer r.checksMu.Unlock()
	r.checks[name] = registeredCheck{fn: fn, critical: critical}
}

// RegisterStats publishes the result of fn under name on /metrics.
func (r *Registry) RegisterStats(name string, fn func() interface{}) {
	r.checksMu.Lock()
	defer r.checksMu.Unlock()
	r.stats[name] = fn
}

func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		r.mu.Lock()
		r.metrics.ActiveRequests++
		r.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		endpoint := c.Request.Method + " " + route

		r.mu.Lock()
		defer r.mu.Unlock()
		m := &r.metrics
		m.RequestCount++
		m.ActiveRequests--
		m.totalDurationNs += duration.Nanoseconds()
		m.AvgDurationMs = float64(m.totalDurationNs) / float64(m.RequestCount) / float64(time.Millisecond)
		m.LastRequest = time.Now()
		if statusCode >= 400 {
			m.ErrorCount++
		}
		if statusCode == http.StatusTooManyRequests {
			m.RateLimited++
		}
		m.StatusCodes[http.StatusText(statusCode)]++
		m.Endpoints[endpoint]++
	}
}

func (r *Registry) Snapshot() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.metrics
	out.StatusCodes = make(map[string]int64, len(r.metrics.StatusCodes))
	for k, v := range r.metrics.StatusCodes {
		out.StatusCodes[k] = v
	}
	out.Endpoints = make(map[string]int64, len(r.metrics.Endpoints))
	for k, v := range r.metrics.Endpoints {
		out.Endpoints[k] = v
	}
	return out
}

// RunHealthChecks runs every check concurrently, each bounded by the
// registry's check timeout.
func (r *Registry) RunHealthChecks(ctx context.Context) []HealthCheck {
	r.checksMu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	checks := make(map[string]registeredCheck, len(r.checks))
	for k, v := range r.checks {
		checks[k] = v
	}
	r.checksMu.RUnlock()
	sort.Strings(names)

	results := make([]HealthCheck, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, check registeredCheck) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.checkTimeout)
			defer cancel()

			start := time.Now()
			err := check.fn(cctx)
			result := HealthCheck{
				Name:     name,
				Status:   StatusHealthy,
				Critical: check.critical,
				Duration: time.Since(start),
				LastRun:  start,
			}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Message = err.Error()
			}
			results[i] = result
		}(i, name, checks[name])
	}
	wg.Wait()
	return results
}

func overallStatus(checks []HealthCheck) string {
	status := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusHealthy {
			continue
		}
		if check.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc_mb"`
	TotalAlloc uint64 `json:"total_alloc_mb"`
	Sys        uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
}

func (r *Registry) systemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Uptime: time.Since(r.metrics.StartTime).Round(time.Second).String(),
		MemoryUsage: MemoryStats{
			Alloc:      bToMb(m.Alloc),
			TotalAlloc: bToMb(m.TotalAlloc),
			Sys:        bToMb(m.Sys),
			NumGC:      m.NumGC,
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

func (r *Registry) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		r.checksMu.RLock()
		extra := make(map[string]interface{}, len(r.stats))
		for name, fn := range r.stats {
			extra[name] = fn()
		}
		r.checksMu.RUnlock()

		c.JSON(http.StatusOK, gin.H{
			"application": r.Snapshot(),
			"system":      r.systemMetrics(),
			"components":  extra,
			"timestamp":   time.Now(),
		})
	}
}

func (r *Registry) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := r.RunHealthChecks(c.Request.Context())
		status := overallStatus(checks)

		code := http.StatusOK
		if status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    time.Since(r.metrics.StartTime).Round(time.Second).String(),
		})
	}
}

func (r *Registry) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if overallStatus(r.RunHealthChecks(c.Request.Context())) == StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "timestamp": time.Now()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
	}
}

func (r *Registry) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	}
}

// RegisterRoutes mounts the ops endpoints on router.
func (r *Registry) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", r.HealthHandler())
	router.GET("/ready", r.ReadinessHandler())
	router.GET("/live", r.LivenessHandler())
	router.GET("/metrics", r.MetricsHandler())
}
