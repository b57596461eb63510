// Package invalidation decides which cache entries a mutation makes stale and evicts them.
package invalidation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults applied by NewConfig.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultQueryCacheTTL = time.Minute
)

// Kind names an invalidation strategy.
type Kind int

const (
	KindImmediate Kind = iota
	KindTimeToLive
	KindManual
	KindTagged
	KindCascade
)

func (k Kind) String() string {
	switch k {
	case KindImmediate:
		return "immediate"
	case KindTimeToLive:
		return "ttl"
	case KindManual:
		return "manual"
	case KindTagged:
		return "tagged"
	case KindCascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// Strategy describes how a mutation of one entity invalidates cached data.
type Strategy struct {
	Kind Kind
	// TTL is the refresh TTL for KindTimeToLive.
	TTL time.Duration
	// Tags are evicted by KindTagged and attached to every entry of the type.
	Tags []string
	// Dependents are the entity types KindCascade recurses into.
	Dependents []string
}

// Immediate evicts the entity and the type's query caches on every mutation.
func Immediate() Strategy { return Strategy{Kind: KindImmediate} }

// TimeToLive keeps entries until they expire; mutations repopulate them with ttl.
func TimeToLive(ttl time.Duration) Strategy { return Strategy{Kind: KindTimeToLive, TTL: ttl} }

// Manual leaves eviction to the caller.
func Manual() Strategy { return Strategy{Kind: KindManual} }

// Tagged evicts every entry carrying one of tags.
func Tagged(tags ...string) Strategy {
	return Strategy{Kind: KindTagged, Tags: append([]string(nil), tags...)}
}

// Cascade evicts the entity and the same id in each dependent type.
func Cascade(dependents ...string) Strategy {
	return Strategy{Kind: KindCascade, Dependents: append([]string(nil), dependents...)}
}

// Config is the immutable cache configuration of one entity type.
type Config struct {
	EntityType    string
	DefaultTTL    time.Duration
	Strategy      Strategy
	KeyPrefix     string
	CacheQueries  bool
	QueryCacheTTL time.Duration
}

// Option customizes a Config built by NewConfig.
type Option func(*Config)

// WithDefaultTTL sets the TTL of entity entries.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) { c.DefaultTTL = ttl }
}

// WithStrategy sets the invalidation strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Config) { c.Strategy = s }
}

// WithKeyPrefix sets the entry key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) { c.KeyPrefix = prefix }
}

// WithQueryCache enables or disables query result caching and sets its TTL.
func WithQueryCache(enabled bool, ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheQueries = enabled
		if ttl > 0 {
			c.QueryCacheTTL = ttl
		}
	}
}

// NewConfig builds a Config for entityType. Without options the key prefix is
// the entity type and the strategy is TimeToLive(DefaultTTL).
func NewConfig(entityType string, opts ...Option) Config {
	cfg := Config{
		EntityType:    entityType,
		DefaultTTL:    DefaultTTL,
		Strategy:      TimeToLive(DefaultTTL),
		KeyPrefix:     entityType,
		CacheQueries:  true,
		QueryCacheTTL: DefaultQueryCacheTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Prefix returns the prefix shared by every key of the type.
func (c Config) Prefix() string { return c.KeyPrefix + ":" }

// EntityKey returns the cache key of one entity.
func (c Config) EntityKey(id uuid.UUID) string { return c.KeyPrefix + ":" + id.String() }

// QueryPrefix returns the prefix of cached query pages.
func (c Config) QueryPrefix() string { return c.KeyPrefix + ":query:" }

// QueryKey returns the cache key of a query page.
func (c Config) QueryKey(hash string) string { return c.QueryPrefix() + hash }

// CountPrefix returns the prefix of cached counts.
func (c Config) CountPrefix() string { return c.KeyPrefix + ":count:" }

// CountKey returns the cache key of a cached count.
func (c Config) CountKey(hash string) string { return c.CountPrefix() + hash }

// Tags returns the tags attached to every entry of the type.
func (c Config) Tags() []string {
	if c.Strategy.Kind != KindTagged {
		return nil
	}
	return append([]string(nil), c.Strategy.Tags...)
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	switch {
	case c.EntityType == "":
		return errors.New("entity type is required")
	case c.KeyPrefix == "":
		return fmt.Errorf("%s: key prefix is required", c.EntityType)
	case c.DefaultTTL < 0 || c.QueryCacheTTL < 0:
		return fmt.Errorf("%s: ttl must not be negative", c.EntityType)
	case c.Strategy.Kind == KindTimeToLive && c.Strategy.TTL <= 0:
		return fmt.Errorf("%s: ttl strategy requires a positive ttl", c.EntityType)
	case c.Strategy.Kind == KindTagged && len(c.Strategy.Tags) == 0:
		return fmt.Errorf("%s: tagged strategy requires at least one tag", c.EntityType)
	}
	return nil
}

// Registry holds the Config of every entity type.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry creates a registry with the given configs.
func NewRegistry(configs ...Config) (*Registry, error) {
	r := &Registry{configs: make(map[string]Config, len(configs))}
	for _, cfg := range configs {
		if err := r.Register(cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a config. Registering a type twice is an error.
func (r *Registry) Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.configs[cfg.EntityType]; exists {
		return fmt.Errorf("entity type %q already registered", cfg.EntityType)
	}
	for _, other := range r.configs {
		if other.KeyPrefix == cfg.KeyPrefix {
			return fmt.Errorf("key prefix %q already used by %q", cfg.KeyPrefix, other.EntityType)
		}
	}
	r.configs[cfg.EntityType] = cfg
	return nil
}

// Lookup returns the config of entityType.
func (r *Registry) Lookup(entityType string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[entityType]
	return cfg, ok
}

// Types returns the registered entity types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.configs))
	for t := range r.configs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
