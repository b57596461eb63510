package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorResponse_Builders(t *testing.T) {
	resp := NewError(ErrCodeValidation, "invalid entity").
		WithRequestID("test-id").
		WithDetails(map[string]string{"amount": "must be greater than 0"})

	assert.Equal(t, ErrCodeValidation, resp.Error)
	assert.Equal(t, "invalid entity", resp.Message)
	assert.Equal(t, "test-id", resp.RequestID)
	assert.Equal(t, "must be greater than 0", resp.Details["amount"])
	assert.NotZero(t, resp.Timestamp)
}

func TestErrCodeFromStatus(t *testing.T) {
	tests := []struct {
		status       int
		expectedCode string
	}{
		{http.StatusBadRequest, ErrCodeInvalidRequest},
		{http.StatusUnprocessableEntity, ErrCodeValidation},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusConflict, ErrCodeConflict},
		{http.StatusServiceUnavailable, ErrCodeUnavailable},
		{http.StatusNotImplemented, ErrCodeNotImplemented},
		{http.StatusGatewayTimeout, ErrCodeTimeout},
		{http.StatusRequestTimeout, ErrCodeTimeout},
		{http.StatusInternalServerError, ErrCodeInternal},
		{http.StatusTeapot, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, ErrCodeFromStatus(tt.status))
		})
	}
}
