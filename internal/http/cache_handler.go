package http

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/gateway"
	"github.com/guttosm/entity-gateway/internal/invalidation"
)

// StatsSource is implemented by every gateway.Gateway.
type StatsSource interface {
	EntityType() string
	Stats(ctx context.Context) (gateway.Stats, error)
}

// CacheStats is the body of GET /cache/stats.
type CacheStats struct {
	Entities             []gateway.Stats `json:"entities"`
	TotalKeys            int             `json:"total_keys"`
	TotalSizeBytes       int64           `json:"total_size_bytes"`
	PendingInvalidations []string        `json:"pending_invalidations"`
}

// CacheHandler serves the cross-type cache administration routes.
type CacheHandler struct {
	sources []StatsSource
	engine  *invalidation.Engine
}

// NewCacheHandler creates a CacheHandler.
func NewCacheHandler(engine *invalidation.Engine, sources ...StatsSource) *CacheHandler {
	sorted := append([]StatsSource(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EntityType() < sorted[j].EntityType() })
	return &CacheHandler{sources: sorted, engine: engine}
}

// RegisterRoutes mounts the handler under /cache.
func (h *CacheHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/cache")
	g.GET("/stats", h.Stats)
	g.DELETE("/tags/:tag", h.InvalidateTag)
}

// Stats handles GET /cache/stats.
func (h *CacheHandler) Stats(c *gin.Context) {
	builder := NewResponseBuilder(c)

	out := CacheStats{Entities: make([]gateway.Stats, 0, len(h.sources)), PendingInvalidations: h.engine.Pending()}
	for _, src := range h.sources {
		st, err := src.Stats(c.Request.Context())
		if err != nil {
			builder.Error(http.StatusServiceUnavailable, "Cache is unavailable", err)
			return
		}
		out.Entities = append(out.Entities, st)
		// Store totals are shared by every type.
		out.TotalKeys = st.TotalKeys
		out.TotalSizeBytes = st.TotalSizeBytes
	}
	builder.SuccessOK(out)
}

// InvalidateTag handles DELETE /cache/tags/:tag.
func (h *CacheHandler) InvalidateTag(c *gin.Context) {
	builder := NewResponseBuilder(c)
	tag := c.Param("tag")

	n, err := h.engine.InvalidateTag(c.Request.Context(), tag)
	if err != nil {
		builder.Error(http.StatusServiceUnavailable, "Cache is unavailable", err)
		return
	}
	builder.SuccessOK(gin.H{"tag": tag, "evicted": n})
}
