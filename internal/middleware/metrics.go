package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/telemetry"
)

// noRoute labels requests that matched no route.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request. The path label is the
// matched route template (c.FullPath()) so resource ids in
// /api/admin/resources/:id do not become separate series.
//
// Register it after RequestIDMiddleware and before handlers so the final
// status, including aborts from the session guard, is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
