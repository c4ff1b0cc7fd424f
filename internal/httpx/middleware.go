package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"thientam/internal/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestContext assigns a request id, stores a request-scoped logger and
// writes one access log line per request.
func RequestContext(log *logger.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(ctxRequestIDKey, id)
		c.Set(ctxProductionKey, production)

		reqLog := log.With("request_id", id)
		c.Set(ctxLoggerKey, reqLog)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			reqLog.Error("request", kv...)
		case status >= 400:
			reqLog.Warn("request", kv...)
		default:
			reqLog.Info("request", kv...)
		}
	}
}

// Recovery turns panics into the standard 500 body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		Log(c).Error("panic recovered", "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "server_error"})
	})
}
