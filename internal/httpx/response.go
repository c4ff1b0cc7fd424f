package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"thientam/internal/logger"
)

const (
	ctxLoggerKey     = "logger"
	ctxProductionKey = "production"
	ctxRequestIDKey  = "request_id"
)

// Message writes {message} with the given status.
func Message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

func NotFound(c *gin.Context, msg string) {
	Message(c, http.StatusNotFound, msg)
}

func BadRequest(c *gin.Context, msg string) {
	Message(c, http.StatusBadRequest, msg)
}

// Invalid answers 400 with the field-level error list derived from err.
func Invalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": "invalid_request",
		"errors":  FieldErrors(err),
	})
}

// InvalidFields answers 400 with an explicit field list.
func InvalidFields(c *gin.Context, errs ...FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": "invalid_request",
		"errors":  errs,
	})
}

// ServerError logs err and answers 500. The error text is only exposed
// outside production.
func ServerError(c *gin.Context, err error) {
	Fail(c, http.StatusInternalServerError, "server_error", err)
}

// Fail is ServerError with a caller-chosen status and message.
func Fail(c *gin.Context, status int, msg string, err error) {
	Log(c).Error(msg, "err", err, "path", c.FullPath())
	body := gin.H{"message": msg}
	if err != nil && !c.GetBool(ctxProductionKey) {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

// Log returns the request-scoped logger, or a no-op logger when the
// request did not pass through the logging middleware.
func Log(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(ctxLoggerKey); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return logger.Nop()
}

func RequestID(c *gin.Context) string {
	return c.GetString(ctxRequestIDKey)
}
