package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutoring-api/internal/service"
)

// Metrics records per-request counters and latency on the metrics service.
// The scrape endpoint itself is excluded so Prometheus polling does not skew
// the numbers.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if metricsSvc == nil || route == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
