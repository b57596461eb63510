package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/domain/dto"
	"github.com/guttosm/entity-gateway/internal/logger"
)

// Timeout bounds the request context with timeout. Gateway calls observe the
// deadline through ctx; when it expires before anything was written the
// middleware answers 504. A non-positive timeout disables the middleware.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}

		requestID := GetRequestID(c)
		log := logger.Logger()
		log.Warn().
			Str("request_id", requestID).
			Str("route", c.FullPath()).
			Dur("timeout", timeout).
			Msg("Request deadline exceeded")

		c.AbortWithStatusJSON(http.StatusGatewayTimeout,
			dto.NewError(dto.ErrCodeTimeout, "Request timeout").WithRequestID(requestID))
	}
}
