package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routePath prefers the route template so path labels stay low-cardinality.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// RequestLogger logs one line per admin request, leveled by status class.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("remote", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("admin request")
	}
}

// RequestMetricsMiddleware feeds the admin HTTP metrics for one server.
func RequestMetricsMiddleware(server string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(server, c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}
