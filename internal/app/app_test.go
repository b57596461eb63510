//go:build !integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/entity-gateway/config"
	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: "0", RequestTimeout: 5 * time.Second},
		Cache: config.CacheConfig{
			Backend:       config.BackendMemory,
			Shards:        4,
			SweepInterval: time.Minute,
			DefaultTTL:    time.Minute,
			QueryTTL:      30 * time.Second,
		},
		Log: config.LogConfig{Level: "error"},
	}
}

func TestInitializeApp_InMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := InitializeApp(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Nil(t, a.Repositories.DB)
	assert.False(t, a.Cache.Binary)
	assert.ElementsMatch(t,
		[]string{model.TypeTransaction, model.TypeCategory, model.TypeGoal},
		a.Cache.Engine.Registry().Types())

	body, _ := json.Marshal(map[string]any{
		"user_id": "7f1c45b2-2a0e-4d8e-9b51-0c7d7f3e6a10",
		"name":    "Food",
		"type":    "expense",
		"color":   "#ff8800",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/category", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, path := range []string{"/api/transaction", "/api/category", "/api/goal", "/api/cache/stats", "/readyz"} {
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestInitializeCache_RedisUnreachableFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = config.BackendRedis
	cfg.Redis.Addr = "127.0.0.1:1"

	c, err := InitializeCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Store.Stop() })

	assert.IsType(t, &cache.MemoryBackend{}, c.Backend)
	assert.False(t, c.Binary)
	assert.NoError(t, c.Check(context.Background()))
}

func TestInitializeRepositories_Disabled(t *testing.T) {
	repos := InitializeRepositories(config.DatabaseConfig{Enabled: false})

	assert.Nil(t, repos.DB)
	assert.Empty(t, repos.CircuitBreakers)
	assert.NotNil(t, repos.Transactions)
	assert.NotNil(t, repos.Categories)
	assert.NotNil(t, repos.Goals)
	assert.NoError(t, repos.Close(context.Background()))
}

func TestInitializeLogger(t *testing.T) {
	assert.NotPanics(t, func() { InitializeLogger(config.LogConfig{}) })
	assert.NotPanics(t, func() { InitializeLogger(config.LogConfig{Level: "debug", Pretty: true}) })
}
