package handler

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
)

// HealthHandler handles health check and metrics endpoints
type HealthHandler struct {
	db        *sql.DB
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// LivenessCheck returns basic liveness status
// @Summary Liveness check
// @Description Returns basic liveness status for Kubernetes probes
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck returns readiness status including dependencies
// @Summary Readiness check
// @Description Returns readiness status including database connectivity
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := make(map[string]metrics.HealthStatus)

	components["database"] = metrics.CheckDatabaseHealth(h.db)
	components["memory"] = metrics.CheckMemoryHealth(512)

	overallStatus := metrics.DetermineOverallStatus(components)

	healthCheck := metrics.HealthCheck{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthCheck)
}

// DetailedHealthCheck returns comprehensive health information
// @Summary Detailed health check
// @Description Returns comprehensive health information including the recompute job
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health [get]
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	components := make(map[string]metrics.HealthStatus)

	components["database"] = metrics.CheckDatabaseHealth(h.db)
	components["memory"] = metrics.CheckMemoryHealth(512)
	components["recompute"] = h.checkRecomputeHealth()

	overallStatus := metrics.DetermineOverallStatus(components)

	healthCheck := metrics.HealthCheck{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthCheck)
}

// checkRecomputeHealth flags a persistently failing recompute job.
func (h *HealthHandler) checkRecomputeHealth() metrics.HealthStatus {
	snapshot := metrics.Get().Snapshot()

	if snapshot.Recompute.Runs > 0 {
		failureRate := float64(snapshot.Recompute.Failures) / float64(snapshot.Recompute.Runs) * 100
		if failureRate > 50 {
			return metrics.HealthStatus{
				Status:  "degraded",
				Message: "high recompute failure rate",
			}
		}
	}

	return metrics.HealthStatus{
		Status: "healthy",
	}
}

// GetMetrics returns application metrics
// @Summary Get application metrics
// @Description Returns all application metrics including request counts, forecast stats, etc.
// @Tags metrics
// @Produce json
// @Success 200 {object} metrics.MetricsSnapshot
// @Router /metrics [get]
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	snapshot := metrics.Get().Snapshot()
	c.JSON(http.StatusOK, snapshot)
}

// GetMemoryStats returns detailed runtime memory statistics
// @Summary Memory statistics
// @Description Returns Go runtime memory statistics for debugging
// @Tags metrics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /debug/memory [get]
func (h *HealthHandler) GetMemoryStats(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.JSON(http.StatusOK, gin.H{
		"heap_alloc_mb":   memStats.HeapAlloc / 1024 / 1024,
		"heap_inuse_mb":   memStats.HeapInuse / 1024 / 1024,
		"heap_sys_mb":     memStats.HeapSys / 1024 / 1024,
		"stack_inuse_mb":  memStats.StackInuse / 1024 / 1024,
		"num_gc":          memStats.NumGC,
		"goroutines":      runtime.NumGoroutine(),
		"gc_pause_ms":     float64(memStats.PauseNs[(memStats.NumGC+255)%256]) / 1e6,
		"next_gc_mb":      memStats.NextGC / 1024 / 1024,
		"total_alloc_mb":  memStats.TotalAlloc / 1024 / 1024,
		"mallocs":         memStats.Mallocs,
		"frees":           memStats.Frees,
		"last_gc":         time.Unix(0, int64(memStats.LastGC)).UTC().Format(time.RFC3339),
	})
}
