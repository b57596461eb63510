package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/domain/dto"
	"github.com/guttosm/entity-gateway/internal/logger"
)

// ErrorHandler logs the errors handlers attach to the gin context. Server-side
// statuses log at error level, the rest at warn. A handler that attached an
// error without writing gets a 500 envelope.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		requestID := GetRequestID(c)
		status := c.Writer.Status()
		if !c.Writer.Written() {
			status = http.StatusInternalServerError
		}

		log := logger.Component("http")
		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status_code", status).
			Strs("errors", c.Errors.Errors()).
			Msg("Request error")

		if !c.Writer.Written() {
			c.JSON(status, dto.NewError(dto.ErrCodeInternal, "An unexpected error occurred").WithRequestID(requestID))
		}
	}
}
