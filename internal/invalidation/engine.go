package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/logger"
	"github.com/guttosm/entity-gateway/internal/metrics"
	"github.com/rs/zerolog"
)

// MaxCascadeDepth bounds how many dependency levels a cascade follows.
const MaxCascadeDepth = 8

// ErrUnknownEntityType is reported for types missing from the registry.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Failure is an eviction that could not be applied.
type Failure struct {
	Key string
	Err error
}

// Result describes what an invalidation did.
type Result struct {
	EntityType string
	Strategy   Kind
	// Evicted lists the keys and prefixes that were cleared.
	Evicted []string
	// Visited lists the entity types touched, in order.
	Visited []string
	// Refresh asks the caller to repopulate the entry with a fresh TTL.
	Refresh  bool
	Failures []Failure
}

// OK reports whether every eviction succeeded.
func (r Result) OK() bool { return len(r.Failures) == 0 }

type pendingOp struct {
	prefix bool
	tag    bool
}

// Engine applies the invalidation strategy of an entity type to the cache store.
// Failed evictions are retried on later calls and never returned as errors.
type Engine struct {
	store    *cache.Store
	registry *Registry
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]pendingOp

	// generations count evictions per entity type. global counts the
	// evictions that are not tied to a single type: keys, tags and retries.
	generations sync.Map // entity type -> *atomic.Uint64
	global      atomic.Uint64
}

// NewEngine creates an Engine.
func NewEngine(store *cache.Store, registry *Registry) *Engine {
	return &Engine{
		store:    store,
		registry: registry,
		log:      logger.Component("invalidation"),
		pending:  make(map[string]pendingOp),
	}
}

// Registry returns the registry the engine resolves types from.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Generation changes whenever an entry of entityType may have been evicted.
// Loads capture it before reading persistence and must not cache their
// result once it has moved.
func (e *Engine) Generation(entityType string) uint64 {
	return e.global.Load() + e.counter(entityType).Load()
}

// Bump advances the generation of entityType.
func (e *Engine) Bump(entityType string) {
	e.counter(entityType).Add(1)
}

func (e *Engine) counter(entityType string) *atomic.Uint64 {
	if v, ok := e.generations.Load(entityType); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := e.generations.LoadOrStore(entityType, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// Invalidate applies the strategy of entityType after a mutation of id.
// Every strategy advances the type's generation, so loads that read
// persistence before the mutation never cache what they read.
func (e *Engine) Invalidate(ctx context.Context, entityType string, id uuid.UUID) Result {
	e.retryPending(ctx)

	res := Result{EntityType: entityType}
	cfg, ok := e.registry.Lookup(entityType)
	if !ok {
		res.Failures = append(res.Failures, Failure{Key: entityType, Err: ErrUnknownEntityType})
		e.log.Warn().Str("entity_type", entityType).Msg("Invalidation for unregistered entity type")
		metrics.RecordInvalidation(entityType, "unknown", "failure")
		return res
	}
	res.Strategy = cfg.Strategy.Kind
	res.Visited = []string{entityType}
	e.Bump(entityType)

	switch cfg.Strategy.Kind {
	case KindImmediate:
		e.evictEntity(ctx, cfg, id, &res)
	case KindTimeToLive:
		res.Refresh = true
	case KindManual:
	case KindTagged:
		e.evictTags(ctx, cfg, id, &res)
	case KindCascade:
		visited := map[string]struct{}{entityType: {}}
		e.evictEntity(ctx, cfg, id, &res)
		e.cascade(ctx, cfg, id, visited, 1, &res)
	}

	result := "success"
	if !res.OK() {
		result = "failure"
	}
	metrics.RecordInvalidation(entityType, cfg.Strategy.Kind.String(), result)
	return res
}

// InvalidateKey evicts one key regardless of strategy.
func (e *Engine) InvalidateKey(ctx context.Context, key string) (bool, error) {
	e.global.Add(1)
	removed, err := e.store.Delete(ctx, key)
	if err != nil {
		e.fail(key, pendingOp{}, err)
		return false, err
	}
	return removed, nil
}

// InvalidateTag evicts every key carrying tag.
func (e *Engine) InvalidateTag(ctx context.Context, tag string) (int, error) {
	e.global.Add(1)
	n, err := e.store.DeleteTag(ctx, tag)
	if err != nil {
		e.fail(tag, pendingOp{tag: true}, err)
	}
	return n, err
}

// InvalidateQueries clears the cached query pages and counts of entityType.
func (e *Engine) InvalidateQueries(ctx context.Context, entityType string) Result {
	res := Result{EntityType: entityType}
	cfg, ok := e.registry.Lookup(entityType)
	if !ok {
		res.Failures = append(res.Failures, Failure{Key: entityType, Err: ErrUnknownEntityType})
		return res
	}
	e.evictQueries(ctx, cfg, &res)
	return res
}

// Pending returns the keys, prefixes and tags waiting for a retry, sorted.
func (e *Engine) Pending() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.pending))
	for k := range e.pending {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) cascade(ctx context.Context, cfg Config, id uuid.UUID, visited map[string]struct{}, depth int, res *Result) {
	if cfg.Strategy.Kind != KindCascade {
		return
	}
	for _, dep := range cfg.Strategy.Dependents {
		if _, seen := visited[dep]; seen {
			continue
		}
		if depth > MaxCascadeDepth {
			e.log.Warn().
				Str("entity_type", res.EntityType).
				Str("dependent", dep).
				Int("depth", depth).
				Msg("Cascade depth limit reached")
			return
		}
		depCfg, ok := e.registry.Lookup(dep)
		if !ok {
			e.log.Warn().Str("dependent", dep).Msg("Cascade to unregistered entity type")
			continue
		}
		visited[dep] = struct{}{}
		res.Visited = append(res.Visited, dep)
		e.evictEntity(ctx, depCfg, id, res)
		e.cascade(ctx, depCfg, id, visited, depth+1, res)
	}
}

func (e *Engine) evictEntity(ctx context.Context, cfg Config, id uuid.UUID, res *Result) {
	e.Bump(cfg.EntityType)
	key := cfg.EntityKey(id)
	if _, err := e.store.Delete(ctx, key); err != nil {
		e.record(res, key, pendingOp{}, err)
	} else {
		res.Evicted = append(res.Evicted, key)
	}
	e.evictQueries(ctx, cfg, res)
}

func (e *Engine) evictQueries(ctx context.Context, cfg Config, res *Result) {
	e.Bump(cfg.EntityType)
	for _, prefix := range []string{cfg.QueryPrefix(), cfg.CountPrefix()} {
		if _, err := e.store.DeletePrefix(ctx, prefix); err != nil {
			e.record(res, prefix, pendingOp{prefix: true}, err)
			continue
		}
		res.Evicted = append(res.Evicted, prefix)
	}
}

// evictTags clears the configured tags plus any tag the entity's entry carries.
func (e *Engine) evictTags(ctx context.Context, cfg Config, id uuid.UUID, res *Result) {
	e.global.Add(1)
	key := cfg.EntityKey(id)
	tags := append(cfg.Tags(), e.store.Tags(key)...)
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if _, err := e.store.DeleteTag(ctx, tag); err != nil {
			e.record(res, tag, pendingOp{tag: true}, err)
			continue
		}
		res.Evicted = append(res.Evicted, "tag:"+tag)
	}
	if _, err := e.store.Delete(ctx, key); err != nil {
		e.record(res, key, pendingOp{}, err)
	} else {
		res.Evicted = append(res.Evicted, key)
	}
}

func (e *Engine) record(res *Result, key string, op pendingOp, err error) {
	res.Failures = append(res.Failures, Failure{Key: key, Err: err})
	e.fail(key, op, err)
}

func (e *Engine) fail(key string, op pendingOp, err error) {
	e.mu.Lock()
	e.pending[key] = op
	e.mu.Unlock()

	e.log.Error().
		Err(fmt.Errorf("%w: %w", errs.ErrInvalidationFailure, err)).
		Str("key", key).
		Msg("InvalidationFailure")
}

func (e *Engine) retryPending(ctx context.Context) {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return
	}
	batch := e.pending
	e.pending = make(map[string]pendingOp)
	e.mu.Unlock()
	e.global.Add(1)

	var retained int
	for key, op := range batch {
		var err error
		switch {
		case op.prefix:
			_, err = e.store.DeletePrefix(ctx, key)
		case op.tag:
			_, err = e.store.DeleteTag(ctx, key)
		default:
			_, err = e.store.Delete(ctx, key)
		}
		if err != nil {
			retained++
			e.mu.Lock()
			e.pending[key] = op
			e.mu.Unlock()
		}
	}
	if retained > 0 {
		e.log.Debug().Int("pending", retained).Msg("Invalidation retry incomplete")
	}
}
