package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/guttosm/entity-gateway/internal/metrics"
)

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	shards   int
	capacity int
	clock    Clock
}

// WithShards sets the shard count. It is rounded up to a power of two.
func WithShards(n int) MemoryOption {
	return func(c *memoryConfig) {
		c.shards = n
	}
}

// WithCapacity bounds the total number of entries; 0 means unbounded.
// When a shard is full the least recently used entry is evicted.
func WithCapacity(n int) MemoryOption {
	return func(c *memoryConfig) {
		c.capacity = n
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(clock Clock) MemoryOption {
	return func(c *memoryConfig) {
		c.clock = clock
	}
}

// MemoryBackend is an in-process sharded Backend.
// It distributes entries across shards to reduce lock contention.
type MemoryBackend struct {
	shards    []*shard
	shardMask uint64
	capacity  int
	clock     Clock

	hits      atomic.Int64
	misses    atomic.Int64
	expired   atomic.Int64
	evictions atomic.Int64
}

// shard is an LRU map guarded by its own lock.
type shard struct {
	mu       sync.RWMutex
	capacity int
	items    map[string]*entry
	head     *entry
	tail     *entry
	bytes    int64
}

// entry is a single cached value with expiration tracking.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (e *entry) size() int64 {
	return int64(len(e.key) + len(e.value))
}

// NewMemoryBackend creates a sharded in-memory backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	cfg := memoryConfig{shards: 16, clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.shards <= 0 {
		cfg.shards = 16
	}
	n := 1
	for n < cfg.shards {
		n *= 2
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}

	perShard := 0
	if cfg.capacity > 0 {
		perShard = cfg.capacity / n
		if perShard < 1 {
			perShard = 1
		}
	}

	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{capacity: perShard, items: make(map[string]*entry)}
	}

	return &MemoryBackend{
		shards:    shards,
		shardMask: uint64(n - 1),
		capacity:  cfg.capacity,
		clock:     cfg.clock,
	}
}

func (b *MemoryBackend) shardFor(key string) *shard {
	return b.shards[xxhash.Sum64String(key)&b.shardMask]
}

// Get returns the value for key. An expired entry is removed and reported absent.
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s := b.shardFor(key)

	s.mu.RLock()
	e, ok := s.items[key]
	var value []byte
	var expired bool
	if ok {
		value = e.value
		expired = e.expired(b.clock())
	}
	s.mu.RUnlock()

	if !ok {
		b.misses.Add(1)
		return nil, false, nil
	}

	if expired {
		s.mu.Lock()
		// Another writer may have replaced the entry since the read lock was released.
		if current, still := s.items[key]; still && current == e {
			s.removeEntry(e)
		}
		s.mu.Unlock()
		b.expired.Add(1)
		b.misses.Add(1)
		metrics.RecordCacheOperation("get", "expired")
		return nil, false, nil
	}

	if s.capacity > 0 {
		s.mu.Lock()
		if current, still := s.items[key]; still && current == e {
			s.moveToFront(e)
		}
		s.mu.Unlock()
	}

	b.hits.Add(1)
	return value, true, nil
}

// Inspect returns the value and expiry of a live entry without touching LRU order.
func (b *MemoryBackend) Inspect(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, false, err
	}
	s := b.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok || e.expired(b.clock()) {
		return nil, time.Time{}, false, nil
	}
	return e.value, e.expiresAt, true, nil
}

// Set stores a copy of value under key.
func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = b.clock().Add(ttl)
	}

	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	// Entries are never mutated in place; readers may still hold the old one.
	if old, ok := s.items[key]; ok {
		s.removeEntry(old)
	}

	e := &entry{key: key, value: stored, expiresAt: expiresAt}
	s.items[key] = e
	s.bytes += e.size()
	s.addToFront(e)

	if s.capacity > 0 && len(s.items) > s.capacity {
		s.removeEntry(s.tail)
		b.evictions.Add(1)
		metrics.RecordCacheOperation("evict", "capacity")
	}
	return nil
}

// Delete removes key and reports whether it was present.
func (b *MemoryBackend) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return false, nil
	}
	s.removeEntry(e)
	return true, nil
}

// DeletePrefix removes every key starting with prefix, one shard at a time.
func (b *MemoryBackend) DeletePrefix(ctx context.Context, prefix string) ([]string, error) {
	var removed []string
	for _, s := range b.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		s.mu.Lock()
		for key, e := range s.items {
			if strings.HasPrefix(key, prefix) {
				s.removeEntry(e)
				removed = append(removed, key)
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

// Sweep removes expired entries. Each shard is scanned under its read lock and
// the write lock is taken per evicted key only.
func (b *MemoryBackend) Sweep(ctx context.Context) ([]string, error) {
	var removed []string
	for _, s := range b.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		now := b.clock()
		var candidates []*entry
		s.mu.RLock()
		for _, e := range s.items {
			if e.expired(now) {
				candidates = append(candidates, e)
			}
		}
		s.mu.RUnlock()

		for _, e := range candidates {
			s.mu.Lock()
			if current, ok := s.items[e.key]; ok && current == e && e.expired(now) {
				s.removeEntry(e)
				removed = append(removed, e.key)
				b.expired.Add(1)
			}
			s.mu.Unlock()
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, including not-yet-swept expired ones.
func (b *MemoryBackend) Len(ctx context.Context) (int, error) {
	total := 0
	for _, s := range b.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total, ctx.Err()
}

// SizeBytes returns the sum of key and value lengths.
func (b *MemoryBackend) SizeBytes(ctx context.Context) (int64, error) {
	var total int64
	for _, s := range b.shards {
		s.mu.RLock()
		total += s.bytes
		s.mu.RUnlock()
	}
	return total, ctx.Err()
}

// Metrics returns aggregated counters from all shards.
func (b *MemoryBackend) Metrics() Metrics {
	size, _ := b.Len(context.Background())
	return Metrics{
		Hits:      b.hits.Load(),
		Misses:    b.misses.Load(),
		Expired:   b.expired.Load(),
		Evictions: b.evictions.Load(),
		Size:      size,
		Capacity:  b.capacity,
	}
}

// Close drops all entries.
func (b *MemoryBackend) Close() error {
	for _, s := range b.shards {
		s.mu.Lock()
		s.items = make(map[string]*entry)
		s.head, s.tail = nil, nil
		s.bytes = 0
		s.mu.Unlock()
	}
	return nil
}

// removeEntry removes an entry from both the map and the linked list.
func (s *shard) removeEntry(e *entry) {
	delete(s.items, e.key)
	s.bytes -= e.size()
	s.remove(e)
}

// moveToFront moves an existing entry to the front of the LRU list.
func (s *shard) moveToFront(e *entry) {
	if e == s.head {
		return
	}
	s.remove(e)
	s.addToFront(e)
}

// addToFront adds an entry to the front of the LRU list.
func (s *shard) addToFront(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// remove unlinks an entry without touching the map.
func (s *shard) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

var (
	_ Backend   = (*MemoryBackend)(nil)
	_ Sweeper   = (*MemoryBackend)(nil)
	_ Inspector = (*MemoryBackend)(nil)
)
