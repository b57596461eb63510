// Package app provides cache initialization.
package app

import (
	"context"

	"github.com/guttosm/entity-gateway/config"
	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/domain/model"
	"github.com/guttosm/entity-gateway/internal/invalidation"
	"github.com/rs/zerolog/log"
)

// CacheComponents holds the cache store and the invalidation engine over it.
type CacheComponents struct {
	Backend cache.Backend
	Store   *cache.Store
	Engine  *invalidation.Engine
	// Binary is set for remote backends, where entries are stored as BSON.
	Binary bool
}

// InitializeCache builds the configured backend and the entity type registry.
// A Redis backend that cannot be reached falls back to the in-memory backend.
func InitializeCache(cfg config.Config) (*CacheComponents, error) {
	backend, binary := newBackend(cfg)

	store := cache.NewStore(backend)
	if cfg.Cache.SweepInterval > 0 {
		store.StartSweeper(cfg.Cache.SweepInterval)
	}

	registry, err := invalidation.NewRegistry(model.Configs(cfg.Cache.DefaultTTL, cfg.Cache.QueryTTL)...)
	if err != nil {
		_ = store.Stop()
		return nil, err
	}

	return &CacheComponents{
		Backend: backend,
		Store:   store,
		Engine:  invalidation.NewEngine(store, registry),
		Binary:  binary,
	}, nil
}

func newBackend(cfg config.Config) (cache.Backend, bool) {
	if cfg.Cache.Backend == config.BackendRedis {
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Address = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.KeyPrefix = cfg.Redis.KeyPrefix

		backend, err := cache.NewRedisBackend(redisCfg)
		if err == nil {
			log.Info().Str("addr", redisCfg.Address).Msg("Connected to Redis")
			return backend, true
		}
		log.Error().Err(err).Msg("Failed to connect to Redis - continuing with in-memory cache")
	}

	opts := []cache.MemoryOption{cache.WithShards(cfg.Cache.Shards)}
	if cfg.Cache.Capacity > 0 {
		opts = append(opts, cache.WithCapacity(cfg.Cache.Capacity))
	}
	return cache.NewMemoryBackend(opts...), false
}

// Check reports whether the cache backend answers.
func (c *CacheComponents) Check(ctx context.Context) error {
	if p, ok := c.Backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	_, err := c.Store.Len(ctx)
	return err
}
