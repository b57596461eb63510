//go:build integration

package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/guttosm/entity-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Exit(testutil.SetupTestMainWithRedis(context.Background(), m))
}

func newIntegrationRedis(t *testing.T) *RedisBackend {
	t.Helper()
	cfg := DefaultRedisConfig()
	cfg.Address = testutil.SharedRedisAddr()
	cfg.KeyPrefix = testutil.SanitizeName(t.Name()) + ":"

	b, err := NewRedisBackend(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBackend_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	b := newIntegrationRedis(t)

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	value, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	removed, err := b.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = b.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRedisBackend_TTL(t *testing.T) {
	ctx := context.Background()
	b := newIntegrationRedis(t)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Second))
	_, expiresAt, ok, err := b.Inspect(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, expiresAt.IsZero())

	assert.Eventually(t, func() bool {
		_, ok, _ := b.Get(ctx, "k")
		return !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedisBackend_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	b := newIntegrationRedis(t)

	for i := 0; i < 250; i++ {
		require.NoError(t, b.Set(ctx, fmt.Sprintf("goal:query:%d", i), []byte("q"), 0))
	}
	require.NoError(t, b.Set(ctx, "goal:1", []byte("e"), 0))
	require.NoError(t, b.Set(ctx, "goal*:query:x", []byte("glob"), 0))

	removed, err := b.DeletePrefix(ctx, "goal:query:")
	require.NoError(t, err)
	assert.Len(t, removed, 250)
	assert.Contains(t, removed, "goal:query:0")

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRedisBackend_StoreTags(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newIntegrationRedis(t))

	require.NoError(t, s.Set(ctx, "goal:1", []byte("a"), time.Minute, "user:1"))
	require.NoError(t, s.Set(ctx, "goal:2", []byte("b"), time.Minute, "user:1"))
	require.NoError(t, s.Set(ctx, "goal:3", []byte("c"), time.Minute, "user:2"))

	n, err := s.DeleteTag(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err := s.Get(ctx, "goal:3")
	require.NoError(t, err)
	assert.True(t, ok)
}
