package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sceneforge/core/pkg/errors"
)

// requestLogger mirrors the teacher's middleware.Logger: a per-request
// trace ID plus structured start/completion log lines, generalized from
// "Request started"/"Request completed" to this service's field names.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.New().String()
		c.Set("trace_id", traceID)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		logger.Info("request completed",
			zap.String("trace_id", traceID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
		)

		for _, e := range c.Errors {
			logger.Error("request error", zap.String("trace_id", traceID), zap.Error(e.Err))
		}
	}
}

// maxRequestBodySize bounds a handler's request body, grounded on the
// teacher's MaxRequestBodySize, generalized into a constructor taking the
// limit instead of a hard-coded one.
func maxRequestBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// respondError renders a domain or APIError uniformly across handlers.
func respondError(c *gin.Context, err error) {
	apiErr := errors.FromDomain(err)
	c.JSON(apiErr.Status, errors.ErrorResponse{Error: apiErr})
}
