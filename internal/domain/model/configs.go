package model

import (
	"time"

	"github.com/guttosm/entity-gateway/internal/invalidation"
)

// SearchFields lists the fields free-text search runs over when a request names none.
var SearchFields = map[string][]string{
	TypeTransaction: {"description", "platform"},
	TypeCategory:    {"name"},
	TypeGoal:        {"title", "description"},
}

// Configs returns the cache configuration of every entity type.
// Categories cascade into transactions because a transaction listing shows its category.
func Configs(defaultTTL, queryTTL time.Duration) []invalidation.Config {
	if defaultTTL <= 0 {
		defaultTTL = invalidation.DefaultTTL
	}
	opts := func(s invalidation.Strategy) []invalidation.Option {
		return []invalidation.Option{
			invalidation.WithStrategy(s),
			invalidation.WithDefaultTTL(defaultTTL),
			invalidation.WithQueryCache(true, queryTTL),
		}
	}
	return []invalidation.Config{
		invalidation.NewConfig(TypeTransaction, opts(invalidation.Immediate())...),
		invalidation.NewConfig(TypeCategory, opts(invalidation.Cascade(TypeTransaction))...),
		invalidation.NewConfig(TypeGoal, opts(invalidation.TimeToLive(defaultTTL))...),
	}
}
