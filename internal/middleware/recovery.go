package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/domain/dto"
	"github.com/guttosm/entity-gateway/internal/logger"
)

// Recovery turns a panic in a handler into a 500 envelope carrying the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := GetRequestID(c)
			log := logger.Component("http")
			log.Error().
				Str("request_id", requestID).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Interface("panic", rec).
				Msg("Handler panicked")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.NewError(dto.ErrCodeInternal, "An unexpected error occurred").WithRequestID(requestID))
		}()
		c.Next()
	}
}
