// Package gateway implements the cache-aside entity gateway: reads check the
// cache before persistence, writes go to persistence first and then drive
// invalidation, and query pages are cached under a hash of their descriptor.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/invalidation"
	"github.com/guttosm/entity-gateway/internal/logger"
	"github.com/guttosm/entity-gateway/internal/metrics"
	"github.com/guttosm/entity-gateway/internal/query"
	"github.com/guttosm/entity-gateway/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Tagger is implemented by entities that carry their own cache tags.
type Tagger interface {
	CacheTags() []string
}

// Creatable is implemented by entities that stamp identity and creation time.
type Creatable[T any] interface {
	Created(id uuid.UUID, at time.Time) T
}

// Touchable is implemented by entities that record modification time.
type Touchable[T any] interface {
	Touched(at time.Time) T
}

// Validatable is implemented by entities with invariants checked before a write.
type Validatable interface {
	Validate() error
}

// Fallback loads an entity on a cache miss. found=false reports absence.
type Fallback[T any] func(ctx context.Context) (value T, found bool, err error)

// Option customizes a Gateway.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// WithClock overrides the time source used for entity timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides how Create assigns ids.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(o *options) { o.newID = fn }
}

// Stats are the gateway's own counters plus the current store totals.
type Stats struct {
	EntityType     string  `json:"entity_type"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Fallbacks      int64   `json:"fallbacks"`
	HitRate        float64 `json:"hit_rate"`
	MissRate       float64 `json:"miss_rate"`
	TotalKeys      int     `json:"total_keys"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
}

// Gateway serves one entity type.
type Gateway[T query.Record] struct {
	cfg    invalidation.Config
	repo   repository.Repository[T]
	store  *cache.Store
	engine *invalidation.Engine
	codec  cache.Codec[T]
	pages  cache.Codec[query.PaginatedResult[T]]
	counts cache.Codec[int]
	log    zerolog.Logger
	opts   options

	flight singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	fallbacks atomic.Int64
}

// New creates a Gateway. A nil codec defaults to JSON.
func New[T query.Record](
	cfg invalidation.Config,
	repo repository.Repository[T],
	store *cache.Store,
	engine *invalidation.Engine,
	codec cache.Codec[T],
	opts ...Option,
) (*Gateway[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gateway %s: %w", cfg.EntityType, err)
	}
	if repo == nil || store == nil || engine == nil {
		return nil, errors.New("gateway: repository, store and engine are required")
	}
	if _, ok := engine.Registry().Lookup(cfg.EntityType); !ok {
		return nil, fmt.Errorf("gateway %s: %w", cfg.EntityType, invalidation.ErrUnknownEntityType)
	}
	if codec == nil {
		codec = cache.JSONCodec[T]{}
	}

	o := options{now: time.Now, newID: uuid.New}
	for _, opt := range opts {
		opt(&o)
	}

	return &Gateway[T]{
		cfg:    cfg,
		repo:   repo,
		store:  store,
		engine: engine,
		codec:  codec,
		pages:  cache.JSONCodec[query.PaginatedResult[T]]{},
		counts: cache.JSONCodec[int]{},
		log:    logger.Component("gateway").With().Str("entity_type", cfg.EntityType).Logger(),
		opts:   o,
	}, nil
}

// EntityType returns the served type name.
func (g *Gateway[T]) EntityType() string { return g.cfg.EntityType }

// Config returns the cache configuration of the served type.
func (g *Gateway[T]) Config() invalidation.Config { return g.cfg }

// Get returns the entity with id, from cache or persistence.
// Absence is reported as found=false with a nil error.
func (g *Gateway[T]) Get(ctx context.Context, id uuid.UUID) (T, bool, error) {
	return g.GetOrPopulate(ctx, id, func(ctx context.Context) (T, bool, error) {
		return g.selectByID(ctx, id)
	})
}

// GetOrPopulate returns the cached entity or runs fallback once per key,
// however many callers miss concurrently. Waiters return on ctx cancellation
// while the in-flight load completes for the others.
func (g *Gateway[T]) GetOrPopulate(ctx context.Context, id uuid.UUID, fallback Fallback[T]) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	key := g.cfg.EntityKey(id)
	if v, ok := g.lookup(ctx, key); ok {
		g.hits.Add(1)
		metrics.RecordGatewayOperation(g.cfg.EntityType, "get", "hit")
		return v, true, nil
	}
	g.misses.Add(1)

	gen := g.engine.Generation(g.cfg.EntityType)
	ch := g.flight.DoChan(flightKey(key, gen), func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if v, ok := g.lookup(fctx, key); ok {
			return loaded[T]{value: v, found: true}, nil
		}
		g.fallbacks.Add(1)
		v, found, err := fallback(fctx)
		if errors.Is(err, errs.ErrNotFound) {
			return loaded[T]{}, nil
		}
		if err != nil {
			return nil, err
		}
		if found {
			g.populate(fctx, v, gen)
		}
		return loaded[T]{value: v, found: found}, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordGatewayOperation(g.cfg.EntityType, "get", "error")
			return zero, false, res.Err
		}
		l := res.Val.(loaded[T])
		result := "miss"
		if !l.found {
			result = "absent"
		}
		metrics.RecordGatewayOperation(g.cfg.EntityType, "get", result)
		return l.value, l.found, nil
	}
}

type loaded[T any] struct {
	value T
	found bool
}

// flightKey scopes a singleflight call to one generation, so callers that
// arrive after an invalidation never join a load that started before it.
func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

// Exists reports whether the entity is present in cache or persistence.
func (g *Gateway[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, found, err := g.Get(ctx, id)
	return found, err
}

// FindByIDs returns the present entities among ids, in request order.
func (g *Gateway[T]) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, found, err := g.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, v)
		}
	}
	return out, nil
}

// Invalidate evicts the cached entity regardless of strategy.
func (g *Gateway[T]) Invalidate(ctx context.Context, id uuid.UUID) (bool, error) {
	return g.engine.InvalidateKey(ctx, g.cfg.EntityKey(id))
}

// ClearAll evicts every entry of the type, including query pages and counts.
func (g *Gateway[T]) ClearAll(ctx context.Context) (int, error) {
	g.engine.Bump(g.cfg.EntityType)
	n, err := g.store.DeletePrefix(ctx, g.cfg.Prefix())
	if err != nil {
		return n, err
	}
	g.log.Info().Int("evicted", n).Msg("Cache cleared")
	return n, nil
}

// Stats returns the gateway counters with the store's current size.
func (g *Gateway[T]) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		EntityType: g.cfg.EntityType,
		Hits:       g.hits.Load(),
		Misses:     g.misses.Load(),
		Fallbacks:  g.fallbacks.Load(),
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
		st.MissRate = float64(st.Misses) / float64(total)
	}

	n, err := g.store.Len(ctx)
	if err != nil {
		return st, err
	}
	size, err := g.store.SizeBytes(ctx)
	if err != nil {
		return st, err
	}
	st.TotalKeys = n
	st.TotalSizeBytes = size
	return st, nil
}

func (g *Gateway[T]) selectByID(ctx context.Context, id uuid.UUID) (T, bool, error) {
	v, err := g.repo.SelectByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// lookup reads and decodes a cached entity. Cache and codec failures are misses.
func (g *Gateway[T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T
	data, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("Cache read failed, using persistence")
		return zero, false
	}
	if !ok {
		return zero, false
	}
	v, err := g.codec.Decode(data)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return zero, false
	}
	return v, true
}

// populate writes v under its entity key unless the type was invalidated
// after gen was taken. Failures are logged only.
func (g *Gateway[T]) populate(ctx context.Context, v T, gen uint64) {
	key := g.cfg.EntityKey(v.GetID())
	data, err := g.codec.Encode(v)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("Skipping cache population")
		return
	}
	g.setCurrent(ctx, key, data, g.entryTTL(), gen, g.tagsFor(v))
}

// setCurrent sets key when gen is still current. An invalidation that lands
// between the check and the write is caught afterwards and the entry dropped.
func (g *Gateway[T]) setCurrent(ctx context.Context, key string, data []byte, ttl time.Duration, gen uint64, tags []string) {
	if g.stale(gen) {
		g.log.Debug().Str("key", key).Msg("Skipping cache population after invalidation")
		return
	}
	if err := g.store.Set(ctx, key, data, ttl, tags...); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("Cache population failed")
		return
	}
	if g.stale(gen) {
		if _, err := g.store.Delete(ctx, key); err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("Stale cache entry not dropped")
		}
	}
}

func (g *Gateway[T]) stale(gen uint64) bool {
	return g.engine.Generation(g.cfg.EntityType) != gen
}

// entryTTL is the strategy TTL for TimeToLive types and DefaultTTL otherwise.
func (g *Gateway[T]) entryTTL() time.Duration {
	if g.cfg.Strategy.Kind == invalidation.KindTimeToLive && g.cfg.Strategy.TTL > 0 {
		return g.cfg.Strategy.TTL
	}
	return g.cfg.DefaultTTL
}

func (g *Gateway[T]) tagsFor(v T) []string {
	tags := g.cfg.Tags()
	if t, ok := any(v).(Tagger); ok {
		tags = append(tags, t.CacheTags()...)
	}
	return tags
}
