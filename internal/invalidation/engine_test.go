//go:build !integration

package invalidation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend fails deletes while down is set.
type flakyBackend struct {
	*cache.MemoryBackend
	down atomic.Bool
}

func (f *flakyBackend) Delete(ctx context.Context, key string) (bool, error) {
	if f.down.Load() {
		return false, errs.Unavailable("delete", errors.New("connection reset"))
	}
	return f.MemoryBackend.Delete(ctx, key)
}

func (f *flakyBackend) DeletePrefix(ctx context.Context, prefix string) ([]string, error) {
	if f.down.Load() {
		return nil, errs.Unavailable("delete prefix", errors.New("connection reset"))
	}
	return f.MemoryBackend.DeletePrefix(ctx, prefix)
}

func setupEngine(t *testing.T, configs ...Config) (*Engine, *cache.Store, *flakyBackend) {
	t.Helper()
	backend := &flakyBackend{MemoryBackend: cache.NewMemoryBackend()}
	store := cache.NewStore(backend)
	t.Cleanup(func() { _ = store.Stop() })

	registry, err := NewRegistry(configs...)
	require.NoError(t, err)
	return NewEngine(store, registry), store, backend
}

func seed(t *testing.T, store *cache.Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, store.Set(context.Background(), k, []byte(k), time.Minute))
	}
}

func present(store *cache.Store, key string) bool {
	_, ok, _ := store.Get(context.Background(), key)
	return ok
}

func TestEngine_Immediate(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("transaction", WithStrategy(Immediate()))
	engine, store, _ := setupEngine(t, cfg)
	id, other := uuid.New(), uuid.New()

	seed(t, store, cfg.EntityKey(id), cfg.EntityKey(other), cfg.QueryKey("h1"), cfg.CountKey("h2"))

	res := engine.Invalidate(ctx, "transaction", id)
	assert.True(t, res.OK())
	assert.False(t, res.Refresh)
	assert.False(t, present(store, cfg.EntityKey(id)))
	assert.False(t, present(store, cfg.QueryKey("h1")))
	assert.False(t, present(store, cfg.CountKey("h2")))
	assert.True(t, present(store, cfg.EntityKey(other)))
}

func TestEngine_TimeToLive(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("goal")
	engine, store, _ := setupEngine(t, cfg)
	id := uuid.New()
	seed(t, store, cfg.EntityKey(id), cfg.QueryKey("h"))

	res := engine.Invalidate(ctx, "goal", id)
	assert.True(t, res.Refresh)
	assert.Empty(t, res.Evicted)
	assert.True(t, present(store, cfg.EntityKey(id)))
	assert.True(t, present(store, cfg.QueryKey("h")))
}

func TestEngine_Manual(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("report", WithStrategy(Manual()))
	engine, store, _ := setupEngine(t, cfg)
	id := uuid.New()
	seed(t, store, cfg.EntityKey(id))

	res := engine.Invalidate(ctx, "report", id)
	assert.True(t, res.OK())
	assert.Empty(t, res.Evicted)
	assert.True(t, present(store, cfg.EntityKey(id)))

	removed, err := engine.InvalidateKey(ctx, cfg.EntityKey(id))
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, present(store, cfg.EntityKey(id)))
}

func TestEngine_Tagged(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("goal", WithStrategy(Tagged("t1")))
	engine, store, _ := setupEngine(t, cfg)
	id := uuid.New()

	require.NoError(t, store.Set(ctx, "k1", []byte("1"), 0, "t1"))
	require.NoError(t, store.Set(ctx, "k2", []byte("2"), 0, "t1"))
	require.NoError(t, store.Set(ctx, "k3", []byte("3"), 0, "t2"))
	require.NoError(t, store.Set(ctx, cfg.EntityKey(id), []byte("e"), 0, "user:7"))
	require.NoError(t, store.Set(ctx, "goal:other", []byte("o"), 0, "user:7"))

	res := engine.Invalidate(ctx, "goal", id)
	assert.True(t, res.OK())
	assert.False(t, present(store, "k1"))
	assert.False(t, present(store, "k2"))
	assert.True(t, present(store, "k3"))
	assert.False(t, store.HasTag("t1"))
	assert.False(t, present(store, cfg.EntityKey(id)))
	assert.False(t, present(store, "goal:other"), "entry tags are evicted too")
}

func TestEngine_CascadeCycle(t *testing.T) {
	ctx := context.Background()
	a := NewConfig("a", WithStrategy(Cascade("b")))
	b := NewConfig("b", WithStrategy(Cascade("a")))
	engine, store, _ := setupEngine(t, a, b)
	id := uuid.New()
	seed(t, store, a.EntityKey(id), b.EntityKey(id), a.QueryKey("q"), b.QueryKey("q"))

	res := engine.Invalidate(ctx, "a", id)
	assert.True(t, res.OK())
	assert.Equal(t, []string{"a", "b"}, res.Visited, "each type is evicted once")
	assert.False(t, present(store, a.EntityKey(id)))
	assert.False(t, present(store, b.EntityKey(id)))
	assert.False(t, present(store, a.QueryKey("q")))
	assert.False(t, present(store, b.QueryKey("q")))
}

func TestEngine_CascadeToNonCascadingDependent(t *testing.T) {
	ctx := context.Background()
	category := NewConfig("category", WithStrategy(Cascade("transaction", "missing")))
	transaction := NewConfig("transaction", WithStrategy(Cascade("goal")))
	goal := NewConfig("goal")
	engine, store, _ := setupEngine(t, category, transaction, goal)
	id := uuid.New()
	seed(t, store, category.EntityKey(id), transaction.EntityKey(id), goal.EntityKey(id))

	res := engine.Invalidate(ctx, "category", id)
	assert.Equal(t, []string{"category", "transaction", "goal"}, res.Visited)
	assert.False(t, present(store, goal.EntityKey(id)))
}

func TestEngine_CascadeDepthLimit(t *testing.T) {
	ctx := context.Background()
	var configs []Config
	names := make([]string, MaxCascadeDepth+3)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	for i, name := range names {
		if i+1 < len(names) {
			configs = append(configs, NewConfig(name, WithStrategy(Cascade(names[i+1]))))
		} else {
			configs = append(configs, NewConfig(name, WithStrategy(Immediate())))
		}
	}
	engine, _, _ := setupEngine(t, configs...)

	res := engine.Invalidate(ctx, names[0], uuid.New())
	assert.Len(t, res.Visited, MaxCascadeDepth+1)
}

func TestEngine_UnknownType(t *testing.T) {
	engine, _, _ := setupEngine(t)

	res := engine.Invalidate(context.Background(), "ghost", uuid.New())
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, ErrUnknownEntityType)
}

func TestEngine_FailuresArePendingAndRetried(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("transaction", WithStrategy(Immediate()))
	engine, store, backend := setupEngine(t, cfg)
	id := uuid.New()
	seed(t, store, cfg.EntityKey(id), cfg.QueryKey("h"))

	backend.down.Store(true)
	res := engine.Invalidate(ctx, "transaction", id)
	assert.False(t, res.OK())
	assert.Len(t, res.Failures, 3)
	for _, f := range res.Failures {
		assert.ErrorIs(t, f.Err, errs.ErrCacheUnavailable)
	}
	assert.ElementsMatch(t,
		[]string{cfg.EntityKey(id), cfg.QueryPrefix(), cfg.CountPrefix()},
		engine.Pending())

	backend.down.Store(false)
	other := NewConfig("goal")
	require.NoError(t, engine.Registry().Register(other))
	engine.Invalidate(ctx, "goal", uuid.New())

	assert.Empty(t, engine.Pending())
	assert.False(t, present(store, cfg.EntityKey(id)))
	assert.False(t, present(store, cfg.QueryKey("h")))
}

func TestEngine_InvalidateTagAndQueries(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("goal")
	engine, store, _ := setupEngine(t, cfg)

	require.NoError(t, store.Set(ctx, "goal:1", []byte("1"), 0, "user:1"))
	require.NoError(t, store.Set(ctx, "goal:2", []byte("2"), 0, "user:2"))
	seed(t, store, cfg.QueryKey("a"), cfg.CountKey("b"))

	n, err := engine.InvalidateTag(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, present(store, "goal:2"))

	res := engine.InvalidateQueries(ctx, "goal")
	assert.True(t, res.OK())
	assert.False(t, present(store, cfg.QueryKey("a")))
	assert.False(t, present(store, cfg.CountKey("b")))
	assert.True(t, present(store, "goal:2"))
}

func TestEngine_Generation(t *testing.T) {
	ctx := context.Background()
	order := NewConfig("order", WithStrategy(Cascade("invoice")))
	invoice := NewConfig("invoice", WithStrategy(Immediate()))
	report := NewConfig("report", WithStrategy(Manual()))
	engine, _, _ := setupEngine(t, order, invoice, report)

	gens := func() [3]uint64 {
		return [3]uint64{engine.Generation("order"), engine.Generation("invoice"), engine.Generation("report")}
	}

	before := gens()
	engine.Invalidate(ctx, "order", uuid.New())
	after := gens()
	assert.NotEqual(t, before[0], after[0])
	assert.NotEqual(t, before[1], after[1], "cascaded types move too")
	assert.Equal(t, before[2], after[2], "unrelated types keep their generation")

	before = after
	engine.Invalidate(ctx, "report", uuid.New())
	after = gens()
	assert.NotEqual(t, before[2], after[2], "every strategy moves its own type")
	assert.Equal(t, before[0], after[0])

	before = after
	_, err := engine.InvalidateKey(ctx, report.EntityKey(uuid.New()))
	require.NoError(t, err)
	after = gens()
	for i := range after {
		assert.NotEqual(t, before[i], after[i], "key and tag evictions move every type")
	}

	before = gens()
	engine.Bump("invoice")
	after = gens()
	assert.NotEqual(t, before[1], after[1])
	assert.Equal(t, before[0], after[0])
}
