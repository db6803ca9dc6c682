package metrics

import (
	"database/sql"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// EndpointMetrics tracks metrics for a specific endpoint
type EndpointMetrics struct {
	Requests     int64
	Errors       int64
	TotalLatency int64
}

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64

	// Request latency (in milliseconds)
	TotalLatency int64
	RequestCount int64

	// Classification metrics
	ClassificationsCacheHit  int64
	ClassificationsProvider  int64
	ClassificationsManual    int64
	ClassificationsAmbiguous int64

	// Forecast metrics
	ForecastsGenerated int64
	ForecastErrors     int64
	ForecastLatency    int64
	ForecastsExported  int64

	// Recompute job metrics
	RecomputeRuns     int64
	RecomputeFailures int64
	RecomputeRunning  int64

	// Hour ingestion metrics
	HoursUpserted     int64
	HoursUpsertErrors int64

	// Mapping metrics
	MappingsCreated    int64
	MappingsOverridden int64

	// Endpoint-specific metrics
	EndpointMetrics map[string]*EndpointMetrics

	// Start time for uptime calculation
	StartTime time.Time
}

// global metrics instance
var globalMetrics *Metrics
var once sync.Once

// Init initializes the global metrics instance
func Init() {
	once.Do(func() {
		globalMetrics = &Metrics{
			StartTime:       time.Now(),
			EndpointMetrics: make(map[string]*EndpointMetrics),
		}
	})
}

// Get returns the global metrics instance
func Get() *Metrics {
	if globalMetrics == nil {
		Init()
	}
	return globalMetrics
}

// IncrementRequests increments request counters
func (m *Metrics) IncrementRequests(success bool, latencyMs int64) {
	atomic.AddInt64(&m.TotalRequests, 1)
	atomic.AddInt64(&m.TotalLatency, latencyMs)
	atomic.AddInt64(&m.RequestCount, 1)

	if success {
		atomic.AddInt64(&m.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&m.FailedRequests, 1)
	}
}

// IncrementClassification records the outcome of one classify call.
// Source matches the classifier's provenance strings.
func (m *Metrics) IncrementClassification(source string, ambiguous bool) {
	if ambiguous {
		atomic.AddInt64(&m.ClassificationsAmbiguous, 1)
		return
	}
	switch source {
	case "manual":
		atomic.AddInt64(&m.ClassificationsManual, 1)
	case "provider":
		atomic.AddInt64(&m.ClassificationsProvider, 1)
	default:
		atomic.AddInt64(&m.ClassificationsCacheHit, 1)
	}
}

// IncrementForecast increments forecast generation counters
func (m *Metrics) IncrementForecast(success bool, latencyMs int64) {
	if success {
		atomic.AddInt64(&m.ForecastsGenerated, 1)
	} else {
		atomic.AddInt64(&m.ForecastErrors, 1)
	}
	atomic.AddInt64(&m.ForecastLatency, latencyMs)
}

// IncrementForecastExport increments the export counter
func (m *Metrics) IncrementForecastExport() {
	atomic.AddInt64(&m.ForecastsExported, 1)
}

// IncrementRecompute increments recompute run counters
func (m *Metrics) IncrementRecompute(success bool) {
	atomic.AddInt64(&m.RecomputeRuns, 1)
	if !success {
		atomic.AddInt64(&m.RecomputeFailures, 1)
	}
}

// SetRecomputeRunning flips the in-progress gauge
func (m *Metrics) SetRecomputeRunning(running bool) {
	if running {
		atomic.StoreInt64(&m.RecomputeRunning, 1)
	} else {
		atomic.StoreInt64(&m.RecomputeRunning, 0)
	}
}

// IncrementHoursUpsert increments hour ingestion counters
func (m *Metrics) IncrementHoursUpsert(success bool) {
	if success {
		atomic.AddInt64(&m.HoursUpserted, 1)
	} else {
		atomic.AddInt64(&m.HoursUpsertErrors, 1)
	}
}

// IncrementMappingCreated increments mapping creation counter
func (m *Metrics) IncrementMappingCreated() {
	atomic.AddInt64(&m.MappingsCreated, 1)
}

// IncrementMappingOverridden increments the manual override counter
func (m *Metrics) IncrementMappingOverridden() {
	atomic.AddInt64(&m.MappingsOverridden, 1)
}

// TrackEndpoint tracks metrics for a specific endpoint
func (m *Metrics) TrackEndpoint(path, method string, statusCode int, latencyMs int64) {
	key := method + " " + path

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EndpointMetrics == nil {
		m.EndpointMetrics = make(map[string]*EndpointMetrics)
	}

	em, exists := m.EndpointMetrics[key]
	if !exists {
		em = &EndpointMetrics{}
		m.EndpointMetrics[key] = em
	}

	atomic.AddInt64(&em.Requests, 1)
	atomic.AddInt64(&em.TotalLatency, latencyMs)
	if statusCode >= 400 {
		atomic.AddInt64(&em.Errors, 1)
	}
}

// GetEndpointMetrics returns a copy of endpoint metrics
func (m *Metrics) GetEndpointMetrics() map[string]EndpointMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]EndpointMetrics)
	for k, v := range m.EndpointMetrics {
		result[k] = EndpointMetrics{
			Requests:     atomic.LoadInt64(&v.Requests),
			Errors:       atomic.LoadInt64(&v.Errors),
			TotalLatency: atomic.LoadInt64(&v.TotalLatency),
		}
	}
	return result
}

// GetAverageLatency returns average request latency in milliseconds
func (m *Metrics) GetAverageLatency() float64 {
	count := atomic.LoadInt64(&m.RequestCount)
	if count == 0 {
		return 0
	}
	total := atomic.LoadInt64(&m.TotalLatency)
	return float64(total) / float64(count)
}

// GetUptime returns the application uptime
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.StartTime)
}

// EndpointMetricsSnapshot represents endpoint metrics in a snapshot
type EndpointMetricsSnapshot struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// MetricsSnapshot represents a point-in-time snapshot of all metrics
type MetricsSnapshot struct {
	// Uptime
	UptimeSeconds float64 `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`

	// Request metrics
	Requests struct {
		Total        int64   `json:"total"`
		Successful   int64   `json:"successful"`
		Failed       int64   `json:"failed"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"requests"`

	// Classification metrics
	Classifications struct {
		CacheHits int64 `json:"cache_hits"`
		Provider  int64 `json:"provider"`
		Manual    int64 `json:"manual"`
		Ambiguous int64 `json:"ambiguous"`
	} `json:"classifications"`

	// Forecast metrics
	Forecasts struct {
		Generated    int64   `json:"generated"`
		Errors       int64   `json:"errors"`
		Exported     int64   `json:"exported"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"forecasts"`

	// Recompute job metrics
	Recompute struct {
		Runs     int64 `json:"runs"`
		Failures int64 `json:"failures"`
		Running  bool  `json:"running"`
	} `json:"recompute"`

	// Hour ingestion metrics
	Hours struct {
		Upserted int64 `json:"upserted"`
		Errors   int64 `json:"errors"`
	} `json:"hours"`

	// Mapping metrics
	Mappings struct {
		Created    int64 `json:"created"`
		Overridden int64 `json:"overridden"`
	} `json:"mappings"`

	// System metrics
	System struct {
		Goroutines   int    `json:"goroutines"`
		HeapAllocMB  uint64 `json:"heap_alloc_mb"`
		HeapInUseMB  uint64 `json:"heap_inuse_mb"`
		StackInUseMB uint64 `json:"stack_inuse_mb"`
		NumGC        uint32 `json:"num_gc"`
	} `json:"system"`

	// Endpoint-specific metrics (top endpoints by request count)
	Endpoints map[string]EndpointMetricsSnapshot `json:"endpoints,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := MetricsSnapshot{}

	// Uptime
	snapshot.UptimeSeconds = m.GetUptime().Seconds()
	snapshot.StartTime = m.StartTime.Format(time.RFC3339)

	// Request metrics
	snapshot.Requests.Total = atomic.LoadInt64(&m.TotalRequests)
	snapshot.Requests.Successful = atomic.LoadInt64(&m.SuccessfulRequests)
	snapshot.Requests.Failed = atomic.LoadInt64(&m.FailedRequests)
	snapshot.Requests.AvgLatencyMs = m.GetAverageLatency()

	// Classification metrics
	snapshot.Classifications.CacheHits = atomic.LoadInt64(&m.ClassificationsCacheHit)
	snapshot.Classifications.Provider = atomic.LoadInt64(&m.ClassificationsProvider)
	snapshot.Classifications.Manual = atomic.LoadInt64(&m.ClassificationsManual)
	snapshot.Classifications.Ambiguous = atomic.LoadInt64(&m.ClassificationsAmbiguous)

	// Forecast metrics
	generated := atomic.LoadInt64(&m.ForecastsGenerated)
	snapshot.Forecasts.Generated = generated
	snapshot.Forecasts.Errors = atomic.LoadInt64(&m.ForecastErrors)
	snapshot.Forecasts.Exported = atomic.LoadInt64(&m.ForecastsExported)
	if generated > 0 {
		snapshot.Forecasts.AvgLatencyMs = float64(atomic.LoadInt64(&m.ForecastLatency)) / float64(generated)
	}

	// Recompute metrics
	snapshot.Recompute.Runs = atomic.LoadInt64(&m.RecomputeRuns)
	snapshot.Recompute.Failures = atomic.LoadInt64(&m.RecomputeFailures)
	snapshot.Recompute.Running = atomic.LoadInt64(&m.RecomputeRunning) == 1

	// Hour metrics
	snapshot.Hours.Upserted = atomic.LoadInt64(&m.HoursUpserted)
	snapshot.Hours.Errors = atomic.LoadInt64(&m.HoursUpsertErrors)

	// Mapping metrics
	snapshot.Mappings.Created = atomic.LoadInt64(&m.MappingsCreated)
	snapshot.Mappings.Overridden = atomic.LoadInt64(&m.MappingsOverridden)

	// System metrics
	snapshot.System.Goroutines = runtime.NumGoroutine()
	snapshot.System.HeapAllocMB = memStats.HeapAlloc / 1024 / 1024
	snapshot.System.HeapInUseMB = memStats.HeapInuse / 1024 / 1024
	snapshot.System.StackInUseMB = memStats.StackInuse / 1024 / 1024
	snapshot.System.NumGC = memStats.NumGC

	// Endpoint metrics
	endpointMetrics := m.GetEndpointMetrics()
	if len(endpointMetrics) > 0 {
		snapshot.Endpoints = make(map[string]EndpointMetricsSnapshot)
		for k, v := range endpointMetrics {
			em := EndpointMetricsSnapshot{
				Requests: v.Requests,
				Errors:   v.Errors,
			}
			if v.Requests > 0 {
				em.ErrorRate = float64(v.Errors) / float64(v.Requests) * 100
				em.AvgLatencyMs = float64(v.TotalLatency) / float64(v.Requests)
			}
			snapshot.Endpoints[k] = em
		}
	}

	return snapshot
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status  string `json:"status"` // "healthy", "degraded", "unhealthy"
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     string                  `json:"status"` // "healthy", "degraded", "unhealthy"
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Timestamp  string                  `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
}

// CheckDatabaseHealth checks database connectivity
func CheckDatabaseHealth(db *sql.DB) HealthStatus {
	start := time.Now()

	if db == nil {
		return HealthStatus{
			Status:  "unhealthy",
			Message: "database connection not initialized",
		}
	}

	err := db.Ping()
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return HealthStatus{
			Status:  "unhealthy",
			Message: err.Error(),
			Latency: latency,
		}
	}

	// Check if latency is acceptable (< 100ms)
	if latency > 100 {
		return HealthStatus{
			Status:  "degraded",
			Message: "high latency",
			Latency: latency,
		}
	}

	return HealthStatus{
		Status:  "healthy",
		Latency: latency,
	}
}

// CheckMemoryHealth checks memory usage
func CheckMemoryHealth(maxHeapMB uint64) HealthStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	heapMB := memStats.HeapAlloc / 1024 / 1024

	if heapMB > maxHeapMB {
		return HealthStatus{
			Status:  "unhealthy",
			Message: "heap memory exceeds limit",
		}
	}

	// Warn if using more than 80% of limit
	if heapMB > (maxHeapMB * 80 / 100) {
		return HealthStatus{
			Status:  "degraded",
			Message: "heap memory usage high",
		}
	}

	return HealthStatus{
		Status: "healthy",
	}
}

// DetermineOverallStatus determines overall health from component statuses
func DetermineOverallStatus(components map[string]HealthStatus) string {
	hasUnhealthy := false
	hasDegraded := false

	for _, status := range components {
		switch status.Status {
		case "unhealthy":
			hasUnhealthy = true
		case "degraded":
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return "unhealthy"
	}
	if hasDegraded {
		return "degraded"
	}
	return "healthy"
}
