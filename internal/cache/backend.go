// Package cache provides the key/value cache store used by the entity gateway:
// pluggable backends with per-key TTL, prefix bulk operations and a tag reverse index.
package cache

import (
	"context"
	"time"
)

// Clock returns the current time. Tests inject a controllable clock.
type Clock func() time.Time

// Backend is the key/value store the Store adapts.
// A ttl of zero means the entry never expires.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete reports whether the key was present.
	Delete(ctx context.Context, key string) (bool, error)
	// DeletePrefix removes every key starting with prefix and returns the removed keys.
	DeletePrefix(ctx context.Context, prefix string) ([]string, error)
	Len(ctx context.Context) (int, error)
	// SizeBytes returns the approximate payload size, or errs.ErrNotImplemented.
	SizeBytes(ctx context.Context) (int64, error)
	Close() error
}

// Sweeper is implemented by backends that need active expiry.
// Sweep removes expired entries and returns their keys.
type Sweeper interface {
	Sweep(ctx context.Context) ([]string, error)
}

// Metrics provides backend performance counters.
type Metrics struct {
	Hits      int64
	Misses    int64
	Expired   int64
	Evictions int64
	Size      int
	Capacity  int
}

// Inspector is implemented by backends that can report entry expiry.
// A zero expiresAt means the entry never expires.
type Inspector interface {
	Inspect(ctx context.Context, key string) (value []byte, expiresAt time.Time, ok bool, err error)
}

// Entry is a live cache entry with its metadata.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
	Tags      []string
}
