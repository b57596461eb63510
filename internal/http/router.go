package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/internal/metrics"
	"github.com/guttosm/entity-gateway/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds router configuration options.
type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	// Routes are mounted under /api.
	Routes []RouteGroup
}

var unloggedPaths = []string{"/healthz", "/readyz", "/metrics"}

// NewRouter creates and configures the Gin router of the gateway API.
func NewRouter(healthHandler *HealthHandler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestID(),
		middleware.Recovery(),
		metrics.PrometheusMiddleware(),
		middleware.Compression("/metrics"),
		middleware.RequestLogger(unloggedPaths...),
		middleware.ErrorHandler(),
	)

	healthHandler.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", middleware.Timeout(cfg.RequestTimeout))
	for _, routes := range cfg.Routes {
		routes.RegisterRoutes(api)
	}

	return router
}
