package gateway

import (
	"context"
	"time"

	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/metrics"
	"github.com/guttosm/entity-gateway/internal/query"
)

// Query returns one page of entities matching f, ordered by s.
// Pages are cached under the hash of (f, s, p) when the type caches queries.
func (g *Gateway[T]) Query(ctx context.Context, f query.Filters, s query.Sort, p query.Pagination) (query.PaginatedResult[T], error) {
	start := time.Now()
	defer func() { metrics.ObserveQuery(g.cfg.EntityType, time.Since(start)) }()

	p = p.Normalize()
	if !g.cfg.CacheQueries {
		return g.evaluate(ctx, f, s, p)
	}

	key := g.cfg.QueryKey(query.Hash(f, s, p))
	if page, ok := cached(ctx, g, key, g.pages); ok {
		g.hits.Add(1)
		metrics.RecordGatewayOperation(g.cfg.EntityType, "query", "hit")
		return page, nil
	}
	g.misses.Add(1)

	res, err := shared(ctx, g, key, g.pages, func(ctx context.Context) (query.PaginatedResult[T], error) {
		return g.evaluate(ctx, f, s, p)
	})
	if err != nil {
		metrics.RecordGatewayOperation(g.cfg.EntityType, "query", "error")
		return query.PaginatedResult[T]{}, err
	}
	metrics.RecordGatewayOperation(g.cfg.EntityType, "query", "miss")
	return res, nil
}

// FindPaginated returns one unfiltered page in id order.
func (g *Gateway[T]) FindPaginated(ctx context.Context, p query.Pagination) (query.PaginatedResult[T], error) {
	return g.Query(ctx, query.Filters{}, query.Sort{}, p)
}

// FindFirst returns the first entity matching f under s.
func (g *Gateway[T]) FindFirst(ctx context.Context, f query.Filters, s query.Sort) (T, bool, error) {
	var zero T
	page, err := g.Query(ctx, f, s, query.Pagination{Page: 1, PerPage: 1})
	if err != nil || len(page.Items) == 0 {
		return zero, false, err
	}
	return page.Items[0], true, nil
}

// Count returns how many entities match f. Counts share the query cache TTL.
func (g *Gateway[T]) Count(ctx context.Context, f query.Filters) (int, error) {
	if !g.cfg.CacheQueries {
		return g.count(ctx, f)
	}
	key := g.cfg.CountKey(query.HashFilters(f))
	if n, ok := cached(ctx, g, key, g.counts); ok {
		g.hits.Add(1)
		metrics.RecordGatewayOperation(g.cfg.EntityType, "count", "hit")
		return n, nil
	}
	g.misses.Add(1)
	n, err := shared(ctx, g, key, g.counts, func(ctx context.Context) (int, error) {
		return g.count(ctx, f)
	})
	if err != nil {
		metrics.RecordGatewayOperation(g.cfg.EntityType, "count", "error")
		return 0, err
	}
	metrics.RecordGatewayOperation(g.cfg.EntityType, "count", "miss")
	return n, nil
}

func (g *Gateway[T]) evaluate(ctx context.Context, f query.Filters, s query.Sort, p query.Pagination) (query.PaginatedResult[T], error) {
	candidates, err := g.repo.SelectCandidates(ctx)
	if err != nil {
		return query.PaginatedResult[T]{}, err
	}
	return query.Apply(candidates, f, s, p), nil
}

// count asks persistence directly when f selects everything.
func (g *Gateway[T]) count(ctx context.Context, f query.Filters) (int, error) {
	if f.IsZero() {
		n, err := g.repo.Count(ctx)
		return int(n), err
	}
	candidates, err := g.repo.SelectCandidates(ctx)
	if err != nil {
		return 0, err
	}
	return query.Count(candidates, f), nil
}

// cached reads a derived value from the query cache. Failures are misses.
func cached[T query.Record, V any](ctx context.Context, g *Gateway[T], key string, codec cache.Codec[V]) (V, bool) {
	var zero V
	data, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("Query cache read failed")
		return zero, false
	}
	if !ok {
		return zero, false
	}
	v, err := codec.Decode(data)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable query page")
		return zero, false
	}
	return v, true
}

// shared computes a derived value once per key and generation and caches it
// with QueryCacheTTL. A result computed across an invalidation is returned
// to its callers but not cached.
func shared[T query.Record, V any](ctx context.Context, g *Gateway[T], key string, codec cache.Codec[V], compute func(context.Context) (V, error)) (V, error) {
	var zero V
	gen := g.engine.Generation(g.cfg.EntityType)
	ch := g.flight.DoChan(flightKey(key, gen), func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		g.fallbacks.Add(1)
		v, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		data, err := codec.Encode(v)
		if err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("Skipping query cache population")
			return v, nil
		}
		g.setCurrent(fctx, key, data, g.cfg.QueryCacheTTL, gen, g.cfg.Tags())
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}
