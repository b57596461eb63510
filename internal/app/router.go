// Package app provides router configuration.
package app

import (
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/config"
	"github.com/guttosm/entity-gateway/internal/http"
)

// InitializeRouter builds the health handler and the gin router over the gateways.
func InitializeRouter(cfg config.Config, c *CacheComponents, repos *Repositories, gws *Gateways) *gin.Engine {
	healthHandler := http.NewHealthHandler()
	healthHandler.RegisterChecker("cache", c)
	if repos.DB != nil {
		healthHandler.RegisterChecker("mongodb", repos.DB)
	}

	// Register circuit breakers for health monitoring
	names := make([]string, 0, len(repos.CircuitBreakers))
	for name := range repos.CircuitBreakers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		healthHandler.RegisterCircuitBreaker(name, repos.CircuitBreakers[name])
	}

	return http.NewRouter(healthHandler, http.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Routes:         gws.Routes(c),
	})
}
