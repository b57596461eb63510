//go:build !integration

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func Test_getLogLevel(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   string
	}{
		{
			name:       "2xx returns info",
			statusCode: 200,
			expected:   "info",
		},
		{
			name:       "3xx returns info",
			statusCode: 301,
			expected:   "info",
		},
		{
			name:       "4xx returns warn",
			statusCode: 400,
			expected:   "warn",
		},
		{
			name:       "404 returns warn",
			statusCode: 404,
			expected:   "warn",
		},
		{
			name:       "5xx returns error",
			statusCode: 500,
			expected:   "error",
		},
		{
			name:       "503 returns error",
			statusCode: 503,
			expected:   "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getLogLevel(tt.statusCode)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		path       string
		statusCode int
		wantLevel  string
		skipped    bool
	}{
		{name: "successful request logs info", path: "/api/goal/1", statusCode: http.StatusOK, wantLevel: "info"},
		{name: "client error logs warn", path: "/api/goal/1", statusCode: http.StatusNotFound, wantLevel: "warn"},
		{name: "server error logs error", path: "/api/goal/1", statusCode: http.StatusServiceUnavailable, wantLevel: "error"},
		{name: "skipped path is silent", path: "/healthz", statusCode: http.StatusOK, skipped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger.SetOutput(&buf, zerolog.DebugLevel)

			router := gin.New()
			router.Use(RequestID(), RequestLogger("/healthz"))
			router.GET("/api/goal/:id", func(c *gin.Context) { c.Status(tt.statusCode) })
			router.GET("/healthz", func(c *gin.Context) { c.Status(tt.statusCode) })

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.statusCode, w.Code)
			if tt.skipped {
				assert.Empty(t, buf.String())
				return
			}
			out := buf.String()
			assert.Contains(t, out, `"level":"`+tt.wantLevel+`"`)
			assert.Contains(t, out, `"route":"/api/goal/:id"`)
			assert.Contains(t, out, `"request_id":"`+w.Header().Get(RequestIDHeader)+`"`)
		})
	}
}
