package middelware

import (
	"net/http"
	"time"

	"testrelay-portal/metrics"
	"testrelay-portal/models"
	"testrelay-portal/transport"
	"testrelay-portal/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LoggingMiddleware provides request logging
type LoggingMiddleware struct {
	logger    logger.Logger
	skipPaths map[string]bool
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(log logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:    log,
		skipPaths: map[string]bool{"/health": true, "/metrics": true},
	}
}

// RequestID makes sure every request carries an X-Request-ID and echoes it
// back on the response.
func (m *LoggingMiddleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(transport.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(transport.RequestIDHeader, id)
		}
		c.Set("request_id", id)
		c.Header(transport.RequestIDHeader, id)
		c.Next()
	}
}

// StructuredLogger logs each request with structured fields and records its
// latency.
func (m *LoggingMiddleware) StructuredLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)

		if m.skipPaths[path] {
			return
		}

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"latency":    latency.String(),
			"ip":         c.ClientIP(),
			"request_id": c.GetString("request_id"),
		}
		if uid := c.GetString(ContextPrincipalID); uid != "" {
			fields["uid"] = uid
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		log := m.logger.WithFields(fields)
		switch {
		case status >= 500:
			log.Error("HTTP request completed with error")
		case status >= 400:
			log.Warn("HTTP request completed with client error")
		default:
			log.Info("HTTP request completed")
		}
	}
}

// Recovery middleware with logging
func (m *LoggingMiddleware) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		m.logger.Errorf("Panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.Failure(
			http.StatusInternalServerError,
			"Internal Server Error",
			"InternalError",
			"An unexpected error occurred",
		))
	})
}
