// Package app provides application initialization and dependency injection.
package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/config"
)

// App is the wired application.
type App struct {
	Router       *gin.Engine
	Cache        *CacheComponents
	Repositories *Repositories
	Gateways     *Gateways
}

// InitializeApp creates and wires all application dependencies.
func InitializeApp(cfg config.Config) (*App, error) {
	// Initialize logger first (needed by other components)
	InitializeLogger(cfg.Log)

	cacheComponents, err := InitializeCache(cfg)
	if err != nil {
		return nil, err
	}

	repos := InitializeRepositories(cfg.Database)

	gateways, err := InitializeGateways(cacheComponents, repos)
	if err != nil {
		_ = cacheComponents.Store.Stop()
		_ = repos.Close(context.Background())
		return nil, err
	}

	return &App{
		Router:       InitializeRouter(cfg, cacheComponents, repos, gateways),
		Cache:        cacheComponents,
		Repositories: repos,
		Gateways:     gateways,
	}, nil
}

// Close stops the sweeper, closes the cache backend and disconnects from MongoDB.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Cache.Store.Stop(), a.Repositories.Close(ctx))
}
