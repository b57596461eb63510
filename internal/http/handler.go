// Package http exposes the entity gateways over a gin REST API.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/domain/dto"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/gateway"
	"github.com/guttosm/entity-gateway/internal/query"
)

// EntityHandler serves the CRUD, query and cache routes of one entity type.
type EntityHandler[T query.Record] struct {
	gw           *gateway.Gateway[T]
	searchFields []string
}

// NewEntityHandler creates a handler for gw. searchFields are used for q
// when the request does not name any.
func NewEntityHandler[T query.Record](gw *gateway.Gateway[T], searchFields []string) *EntityHandler[T] {
	return &EntityHandler[T]{gw: gw, searchFields: searchFields}
}

// RegisterRoutes mounts the handler under /{entity type}.
func (h *EntityHandler[T]) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/" + h.gw.EntityType())
	g.GET("", h.List)
	g.POST("", h.Create)
	g.DELETE("/cache", h.ClearCache)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/invalidate", h.Invalidate)
}

// Get handles GET /{type}/:id.
func (h *EntityHandler[T]) Get(c *gin.Context) {
	builder := NewResponseBuilder(c)
	id, ok := h.pathID(c, builder)
	if !ok {
		return
	}

	entity, found, err := h.gw.Get(c.Request.Context(), id)
	switch {
	case err != nil:
		builder.ErrorFrom(err)
	case !found:
		builder.ErrorFrom(errs.ErrNotFound)
	default:
		builder.SuccessOK(entity)
	}
}

// List handles GET /{type} with filters, sorting and pagination from the query string.
func (h *EntityHandler[T]) List(c *gin.Context) {
	builder := NewResponseBuilder(c)

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		builder.Error(http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	filters, err := req.Filters(c.Request.URL.Query(), h.searchFields)
	if err != nil {
		builder.ErrorFrom(err)
		return
	}

	page, err := h.gw.Query(c.Request.Context(), filters, req.Sort(), req.Pagination())
	if err != nil {
		builder.ErrorFrom(err)
		return
	}
	builder.SuccessOK(page)
}

// Create handles POST /{type}.
func (h *EntityHandler[T]) Create(c *gin.Context) {
	builder := NewResponseBuilder(c)

	entity, err := BuildRequest[T](c)
	if err != nil {
		builder.Error(http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.gw.Create(c.Request.Context(), *entity)
	if err != nil {
		builder.ErrorFrom(err)
		return
	}
	builder.SuccessCreated(created)
}

// Update handles PUT /{type}/:id. The body is merged onto the persisted entity.
func (h *EntityHandler[T]) Update(c *gin.Context) {
	builder := NewResponseBuilder(c)
	id, ok := h.pathID(c, builder)
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		builder.Error(http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.gw.Mutate(c.Request.Context(), id, gateway.UpdateOp(func(current T) (T, error) {
		if err := json.Unmarshal(body, &current); err != nil {
			var zero T
			return zero, errs.NewValidationError("body", err.Error())
		}
		return current, nil
	}))
	if err != nil {
		builder.ErrorFrom(err)
		return
	}
	builder.SuccessOK(updated)
}

// Delete handles DELETE /{type}/:id.
func (h *EntityHandler[T]) Delete(c *gin.Context) {
	builder := NewResponseBuilder(c)
	id, ok := h.pathID(c, builder)
	if !ok {
		return
	}

	existed, err := h.gw.Delete(c.Request.Context(), id)
	switch {
	case err != nil:
		builder.ErrorFrom(err)
	case !existed:
		builder.ErrorFrom(errs.ErrNotFound)
	default:
		builder.NoContent()
	}
}

// Invalidate handles POST /{type}/:id/invalidate.
func (h *EntityHandler[T]) Invalidate(c *gin.Context) {
	builder := NewResponseBuilder(c)
	id, ok := h.pathID(c, builder)
	if !ok {
		return
	}

	removed, err := h.gw.Invalidate(c.Request.Context(), id)
	if err != nil {
		builder.ErrorFrom(err)
		return
	}
	builder.SuccessOK(gin.H{"id": id, "evicted": removed})
}

// ClearCache handles DELETE /{type}/cache.
func (h *EntityHandler[T]) ClearCache(c *gin.Context) {
	builder := NewResponseBuilder(c)

	n, err := h.gw.ClearAll(c.Request.Context())
	if err != nil {
		builder.ErrorFrom(err)
		return
	}
	builder.SuccessOK(gin.H{"entity_type": h.gw.EntityType(), "evicted": n})
}

func (h *EntityHandler[T]) pathID(c *gin.Context, builder *ResponseBuilder) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		builder.Error(http.StatusBadRequest, "id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
