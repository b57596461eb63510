package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/circuitbreaker"
	"github.com/guttosm/entity-gateway/internal/domain/dto"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/middleware"
	"github.com/guttosm/entity-gateway/internal/repository"
)

// Response DTO pools for reducing allocations.
var (
	successResponsePool = sync.Pool{
		New: func() interface{} {
			return &dto.SuccessResponse{}
		},
	}

	errorResponsePool = sync.Pool{
		New: func() interface{} {
			return &dto.ErrorResponse{}
		},
	}
)

func getSuccessResponse() *dto.SuccessResponse {
	if resp, ok := successResponsePool.Get().(*dto.SuccessResponse); ok {
		return resp
	}
	return &dto.SuccessResponse{}
}

func putSuccessResponse(resp *dto.SuccessResponse) {
	resp.Data = nil
	resp.RequestID = ""
	resp.Timestamp = time.Time{}
	successResponsePool.Put(resp)
}

func getErrorResponse() *dto.ErrorResponse {
	if resp, ok := errorResponsePool.Get().(*dto.ErrorResponse); ok {
		return resp
	}
	return &dto.ErrorResponse{}
}

func putErrorResponse(resp *dto.ErrorResponse) {
	resp.Error = ""
	resp.Message = ""
	resp.RequestID = ""
	resp.Timestamp = time.Time{}
	resp.Details = nil
	errorResponsePool.Put(resp)
}

// BuildRequest binds the JSON body of the request into a new T.
func BuildRequest[T any](c *gin.Context) (*T, error) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ResponseBuilder writes the API envelopes.
// Uses sync.Pool for DTO reuse to reduce allocations.
type ResponseBuilder struct {
	c *gin.Context
}

// NewResponseBuilder creates a new response builder for the given context.
func NewResponseBuilder(c *gin.Context) *ResponseBuilder {
	return &ResponseBuilder{c: c}
}

// Success sends a successful response with the given data.
func (b *ResponseBuilder) Success(statusCode int, data interface{}) {
	resp := getSuccessResponse()
	resp.Data = data
	resp.RequestID = middleware.GetRequestID(b.c)
	resp.Timestamp = time.Now()

	// gin serializes synchronously, so the response can go back to the pool right after.
	b.c.JSON(statusCode, resp)
	putSuccessResponse(resp)
}

// SuccessOK sends a 200 OK response with the given data.
func (b *ResponseBuilder) SuccessOK(data interface{}) {
	b.Success(http.StatusOK, data)
}

// SuccessCreated sends a 201 Created response with the given data.
func (b *ResponseBuilder) SuccessCreated(data interface{}) {
	b.Success(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func (b *ResponseBuilder) NoContent() {
	b.c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code and message.
// err, when set, is attached to the gin context for the error handler to log.
func (b *ResponseBuilder) Error(statusCode int, message string, err error) {
	b.write(statusCode, message, nil, err)
}

// ErrorFrom maps err to a status code and writes the error envelope.
func (b *ResponseBuilder) ErrorFrom(err error) {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			details[f.Field] = f.Message
		}
		b.write(http.StatusBadRequest, "Validation failed", details, nil)
	case errors.Is(err, errs.ErrValidation):
		b.write(http.StatusBadRequest, err.Error(), nil, nil)
	case errors.Is(err, errs.ErrNotFound):
		b.write(http.StatusNotFound, "Entity not found", nil, nil)
	case errors.Is(err, repository.ErrDuplicateID):
		b.write(http.StatusConflict, "Entity already exists", nil, nil)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, errs.ErrStoreFailure):
		b.write(http.StatusServiceUnavailable, "Persistence is unavailable", nil, err)
	case errors.Is(err, errs.ErrNotImplemented):
		b.write(http.StatusNotImplemented, "Operation not supported", nil, nil)
	case errors.Is(err, context.DeadlineExceeded):
		b.write(http.StatusGatewayTimeout, "Request timeout", nil, err)
	default:
		b.write(http.StatusInternalServerError, "An unexpected error occurred", nil, err)
	}
}

func (b *ResponseBuilder) write(statusCode int, message string, details map[string]string, err error) {
	resp := getErrorResponse()
	resp.Error = dto.ErrCodeFromStatus(statusCode)
	if details != nil {
		resp.Error = dto.ErrCodeValidation
	}
	resp.Message = message
	resp.Details = details
	resp.RequestID = middleware.GetRequestID(b.c)
	resp.Timestamp = time.Now()

	if err != nil {
		_ = b.c.Error(err)
	}

	b.c.AbortWithStatusJSON(statusCode, resp)
	putErrorResponse(resp)
}
