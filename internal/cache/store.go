package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/logger"
	"github.com/guttosm/entity-gateway/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrInvalidKey is returned when a key is empty.
var ErrInvalidKey = errors.New("invalid cache key")

// Store adapts a Backend and maintains the tag to keys reverse index.
//
// Set and Delete on the same key are serialized by a per-key lock so the
// backend write and the index update are observed together. Operations on
// different keys never share a lock.
type Store struct {
	backend Backend
	tags    *tagIndex
	locks   *keyLocks
	log     zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		tags:    newTagIndex(),
		locks:   newKeyLocks(),
		log:     logger.Component("cache"),
		stopCh:  make(chan struct{}),
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Get returns the value stored under key. Expired entries are never returned.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}
	value, ok, err := s.backend.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheOperation("get", "error")
		return nil, false, err
	case !ok:
		metrics.RecordCacheOperation("get", "miss")
		s.unindex(ctx, key)
		return nil, false, nil
	default:
		metrics.RecordCacheOperation("get", "hit")
		return value, true, nil
	}
}

// Entry returns a live entry with its expiry and tags. Backends without an
// Inspector report a zero ExpiresAt.
func (s *Store) Entry(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, ErrInvalidKey
	}
	var (
		value     []byte
		expiresAt time.Time
		ok        bool
		err       error
	)
	if in, isInspector := s.backend.(Inspector); isInspector {
		value, expiresAt, ok, err = in.Inspect(ctx, key)
	} else {
		value, ok, err = s.backend.Get(ctx, key)
	}
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return Entry{Key: key, Value: value, ExpiresAt: expiresAt, Tags: s.tags.tagsOf(key)}, true, nil
}

// Set stores value under key, replacing any previous value and tag set.
// A ttl of zero stores the entry without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if key == "" {
		return ErrInvalidKey
	}
	unlock := s.locks.lock(key)
	defer unlock()

	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		metrics.RecordCacheOperation("set", "error")
		return err
	}
	s.tags.replace(key, tags)
	metrics.RecordCacheOperation("set", "success")
	return nil
}

// Delete removes key and reports whether it was present. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	unlock := s.locks.lock(key)
	defer unlock()

	removed, err := s.backend.Delete(ctx, key)
	if err != nil {
		metrics.RecordCacheOperation("delete", "error")
		return false, err
	}
	s.tags.remove(key)
	if removed {
		metrics.RecordCacheOperation("delete", "success")
	}
	return removed, nil
}

// DeletePrefix removes every key with the given byte prefix and returns how many were removed.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	removed, err := s.backend.DeletePrefix(ctx, prefix)
	for _, key := range removed {
		s.tags.remove(key)
	}
	if err != nil {
		metrics.RecordCacheOperation("delete_prefix", "error")
		return len(removed), err
	}
	metrics.RecordCacheOperation("delete_prefix", "success")
	return len(removed), nil
}

// ScanTag returns the keys currently associated with tag, sorted.
func (s *Store) ScanTag(tag string) []string {
	return s.tags.keys(tag)
}

// Tags returns the tags recorded for key, sorted.
func (s *Store) Tags(key string) []string {
	return s.tags.tagsOf(key)
}

// HasTag reports whether the index still holds an entry for tag.
func (s *Store) HasTag(tag string) bool {
	return s.tags.hasTag(tag)
}

// DeleteTag evicts every key carrying tag and drops the tag entry once empty.
// Keys that fail to delete stay indexed and their first error is returned.
func (s *Store) DeleteTag(ctx context.Context, tag string) (int, error) {
	var (
		count    int
		firstErr error
	)
	for _, key := range s.tags.keys(tag) {
		removed, err := s.Delete(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if removed {
			count++
		}
	}
	s.tags.dropIfEmpty(tag)
	return count, firstErr
}

// Len returns the number of entries held by the backend.
func (s *Store) Len(ctx context.Context) (int, error) {
	return s.backend.Len(ctx)
}

// SizeBytes returns the backend payload size, or 0 when the backend does not track it.
func (s *Store) SizeBytes(ctx context.Context) (int64, error) {
	n, err := s.backend.SizeBytes(ctx)
	if errors.Is(err, errs.ErrNotImplemented) {
		return 0, nil
	}
	return n, err
}

// Sweep removes expired entries on backends that need active expiry, then
// drops index entries whose keys the backend no longer holds.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	var (
		removed []string
		err     error
	)
	if sw, ok := s.backend.(Sweeper); ok {
		removed, err = sw.Sweep(ctx)
		if len(removed) > 0 {
			metrics.RecordCacheOperation("sweep", "expired")
		}
	}
	for _, key := range removed {
		s.unindex(ctx, key)
	}
	if err != nil {
		return len(removed), err
	}
	if pruned := s.pruneIndex(ctx); pruned > 0 {
		s.log.Debug().Int("pruned", pruned).Msg("Dropped tag index entries of evicted keys")
	}
	return len(removed), nil
}

// unindex drops the tags of key once the backend no longer holds it.
// Backend expiry and capacity eviction bypass Delete, so reads and sweeps
// catch up here.
func (s *Store) unindex(ctx context.Context, key string) bool {
	if !s.tags.indexed(key) {
		return false
	}
	unlock := s.locks.lock(key)
	defer unlock()
	if _, present, err := s.backend.Get(ctx, key); err != nil || present {
		return false
	}
	s.tags.remove(key)
	return true
}

func (s *Store) pruneIndex(ctx context.Context) int {
	var pruned int
	for _, key := range s.tags.indexedKeys() {
		if ctx.Err() != nil {
			break
		}
		if s.unindex(ctx, key) {
			pruned++
		}
	}
	return pruned
}

// StartSweeper runs Sweep every interval until Stop is called.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n, err := s.Sweep(context.Background())
				if err != nil {
					s.log.Warn().Err(err).Msg("Cache sweep failed")
				} else if n > 0 {
					s.log.Debug().Int("expired", n).Msg("Cache sweep removed entries")
				}
				if size, err := s.backend.Len(context.Background()); err == nil {
					metrics.UpdateCacheEntries(size)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the sweeper and closes the backend.
func (s *Store) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		err = s.backend.Close()
	})
	return err
}

// keyLocks hands out per-key mutexes, reference counted so idle keys hold no memory.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// tagIndex maps tags to keys and keys to their tags.
type tagIndex struct {
	byTag sync.Map // tag -> *keySet
	byKey sync.Map // key -> []string
}

type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
	dead bool
}

func newTagIndex() *tagIndex {
	return &tagIndex{}
}

func (t *tagIndex) replace(key string, tags []string) {
	tags = dedupe(tags)
	var previous []string
	if len(tags) == 0 {
		if old, loaded := t.byKey.LoadAndDelete(key); loaded {
			previous = old.([]string)
		}
	} else if old, loaded := t.byKey.Swap(key, tags); loaded {
		previous = old.([]string)
	}

	keep := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		keep[tag] = struct{}{}
	}
	for _, tag := range previous {
		if _, ok := keep[tag]; !ok {
			t.unlink(tag, key)
		}
	}
	for _, tag := range tags {
		t.link(tag, key)
	}
}

func (t *tagIndex) remove(key string) {
	old, loaded := t.byKey.LoadAndDelete(key)
	if !loaded {
		return
	}
	for _, tag := range old.([]string) {
		t.unlink(tag, key)
	}
}

func (t *tagIndex) link(tag, key string) {
	for {
		v, _ := t.byTag.LoadOrStore(tag, &keySet{keys: make(map[string]struct{})})
		set := v.(*keySet)
		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue
		}
		set.keys[key] = struct{}{}
		set.mu.Unlock()
		return
	}
}

func (t *tagIndex) unlink(tag, key string) {
	v, ok := t.byTag.Load(tag)
	if !ok {
		return
	}
	set := v.(*keySet)
	set.mu.Lock()
	defer set.mu.Unlock()
	delete(set.keys, key)
	if len(set.keys) == 0 && !set.dead {
		set.dead = true
		t.byTag.CompareAndDelete(tag, set)
	}
}

func (t *tagIndex) dropIfEmpty(tag string) {
	v, ok := t.byTag.Load(tag)
	if !ok {
		return
	}
	set := v.(*keySet)
	set.mu.Lock()
	defer set.mu.Unlock()
	if len(set.keys) == 0 && !set.dead {
		set.dead = true
		t.byTag.CompareAndDelete(tag, set)
	}
}

func (t *tagIndex) keys(tag string) []string {
	v, ok := t.byTag.Load(tag)
	if !ok {
		return nil
	}
	set := v.(*keySet)
	set.mu.Lock()
	keys := make([]string, 0, len(set.keys))
	for k := range set.keys {
		keys = append(keys, k)
	}
	set.mu.Unlock()
	sort.Strings(keys)
	return keys
}

func (t *tagIndex) tagsOf(key string) []string {
	v, ok := t.byKey.Load(key)
	if !ok {
		return nil
	}
	tags := append([]string(nil), v.([]string)...)
	sort.Strings(tags)
	return tags
}

func (t *tagIndex) indexed(key string) bool {
	_, ok := t.byKey.Load(key)
	return ok
}

func (t *tagIndex) indexedKeys() []string {
	var keys []string
	t.byKey.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys
}

func (t *tagIndex) hasTag(tag string) bool {
	_, ok := t.byTag.Load(tag)
	return ok
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
