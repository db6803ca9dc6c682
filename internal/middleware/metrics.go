package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
)

// MetricsMiddleware tracks request metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start).Milliseconds()
		statusCode := c.Writer.Status()
		success := statusCode < 400

		metrics.Get().IncrementRequests(success, latency)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.Get().TrackEndpoint(path, c.Request.Method, statusCode, latency)
	}
}

// AuditMiddleware logs audit events for state-changing operations on
// the forecasting surfaces.
func AuditMiddleware() gin.HandlerFunc {
	auditPrefixes := []string{
		"/api/v1/hours",
		"/api/v1/forecasts",
		"/api/v1/baselines/recompute",
		"/api/v1/mappings",
		"/api/v1/projects",
		"/api/v1/budgets",
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		shouldAudit := false
		for _, prefix := range auditPrefixes {
			if strings.HasPrefix(path, prefix) {
				shouldAudit = true
				break
			}
		}

		c.Next()

		if shouldAudit && (c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "DELETE") {
			logger.AuditRequest(
				c.Request.Context(),
				c.Request.Method,
				path,
				c.Writer.Status(),
				time.Since(start).Milliseconds(),
				c.ClientIP(),
			)
		}
	}
}
