package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBreaker(name string) *circuitbreaker.CircuitBreaker {
	cb := circuitbreaker.New(circuitbreaker.Config{Name: name, FailureThreshold: 1, Timeout: time.Hour})
	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	return cb
}

func TestHealthHandler_Readiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		setupHandler   func() *HealthHandler
		expectedStatus int
		expectedChecks map[string]interface{}
	}{
		{
			name: "readiness check no checkers",
			setupHandler: func() *HealthHandler {
				return NewHealthHandler()
			},
			expectedStatus: http.StatusOK,
			expectedChecks: map[string]interface{}{"service": "ok"},
		},
		{
			name: "readiness check with healthy circuit breaker",
			setupHandler: func() *HealthHandler {
				handler := NewHealthHandler()
				handler.RegisterCircuitBreaker("mongodb", circuitbreaker.New(circuitbreaker.DefaultConfig()))
				return handler
			},
			expectedStatus: http.StatusOK,
			expectedChecks: map[string]interface{}{"mongodb_circuit": "closed"},
		},
		{
			name: "readiness check with open circuit breaker",
			setupHandler: func() *HealthHandler {
				handler := NewHealthHandler()
				handler.RegisterCircuitBreaker("mongodb", openBreaker("mongodb"))
				return handler
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedChecks: map[string]interface{}{"mongodb_circuit": "open"},
		},
		{
			name: "readiness check with passing and failing checkers",
			setupHandler: func() *HealthHandler {
				handler := NewHealthHandler()
				handler.RegisterChecker("cache", HealthCheckerFunc(func(context.Context) error { return nil }))
				handler.RegisterChecker("mongodb", HealthCheckerFunc(func(context.Context) error {
					return errors.New("server selection timeout")
				}))
				return handler
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedChecks: map[string]interface{}{"cache": "ok", "mongodb": "server selection timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			handler := tt.setupHandler()
			handler.Register(router)

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var body struct {
				Status string                 `json:"status"`
				Checks map[string]interface{} `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedChecks, body.Checks)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "ok", body.Status)
			} else {
				assert.Equal(t, "degraded", body.Status)
			}
		})
	}
}

func TestHealthHandler_RegisterNilCircuitBreaker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHealthHandler()
	handler.RegisterCircuitBreaker("mongodb", nil)
	handler.Register(router)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_Liveness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHealthHandler()
	handler.RegisterChecker("mongodb", HealthCheckerFunc(func(context.Context) error { return errors.New("down") }))
	handler.Register(router)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "liveness ignores dependencies")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
