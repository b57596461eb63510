package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values", func(t *testing.T) {
		os.Clearenv()

		cfg := Load()

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
		assert.Equal(t, BackendMemory, cfg.Cache.Backend)
		assert.Equal(t, 16, cfg.Cache.Shards)
		assert.Zero(t, cfg.Cache.Capacity)
		assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
		assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
		assert.Equal(t, time.Minute, cfg.Cache.QueryTTL)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(t, "eg:", cfg.Redis.KeyPrefix)
		assert.Equal(t, "entity_gateway", cfg.Database.DatabaseName)
		assert.False(t, cfg.Database.Enabled)
		assert.Equal(t, 5, cfg.Database.CircuitBreakerFailureThreshold)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Pretty)
	})

	t.Run("loads values from environment", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("PORT", "9090")
		_ = os.Setenv("CACHE_BACKEND", "Redis")
		_ = os.Setenv("CACHE_SHARDS", "32")
		_ = os.Setenv("CACHE_SWEEP_INTERVAL", "0s")
		_ = os.Setenv("CACHE_DEFAULT_TTL", "10m")
		_ = os.Setenv("CACHE_QUERY_TTL", "30s")
		_ = os.Setenv("REDIS_ADDR", "redis:6380")
		_ = os.Setenv("REDIS_DB", "2")
		_ = os.Setenv("MONGODB_ENABLED", "true")
		_ = os.Setenv("CIRCUIT_BREAKER_TIMEOUT", "5s")
		_ = os.Setenv("LOG_PRETTY", "true")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, BackendRedis, cfg.Cache.Backend)
		assert.Equal(t, 32, cfg.Cache.Shards)
		assert.Zero(t, cfg.Cache.SweepInterval)
		assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
		assert.Equal(t, 30*time.Second, cfg.Cache.QueryTTL)
		assert.Equal(t, "redis:6380", cfg.Redis.Addr)
		assert.Equal(t, 2, cfg.Redis.DB)
		assert.True(t, cfg.Database.Enabled)
		assert.Equal(t, 5*time.Second, cfg.Database.CircuitBreakerTimeout)
		assert.True(t, cfg.Log.Pretty)
	})

	t.Run("handles invalid values gracefully", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("CACHE_SHARDS", "invalid")
		_ = os.Setenv("MONGODB_ENABLED", "invalid")
		_ = os.Setenv("CACHE_DEFAULT_TTL", "invalid")
		_ = os.Setenv("CACHE_BACKEND", "memcached")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, 16, cfg.Cache.Shards)
		assert.False(t, cfg.Database.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
		assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	})

	t.Run("parses CORS origins with whitespace", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("CORS_ORIGINS", " https://app.example.com , ,https://admin.example.com")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"https://app.example.com",
			"https://admin.example.com",
		}, cfg.Server.CORSOrigins)
	})
}
