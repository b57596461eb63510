package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/redis/go-redis/v9"
)

const redisScanBatch = 100

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Address is the Redis server address (host:port).
	Address string
	// Password for authentication (optional).
	Password string
	// DB selects the Redis database index.
	DB int
	// KeyPrefix is prepended to all keys (for namespacing).
	KeyPrefix    string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:      "localhost:6379",
		KeyPrefix:    "eg:",
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisBackend is a Backend on top of a Redis server. Expiry is delegated to Redis.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errs.Unavailable("redis ping", err)
	}

	return NewRedisBackendFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client, keyPrefix string) *RedisBackend {
	return &RedisBackend{client: client, keyPrefix: keyPrefix}
}

func (b *RedisBackend) fullKey(key string) string {
	return b.keyPrefix + key
}

// Get retrieves a value from Redis.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Get(ctx, b.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, b.wrapError("get", err)
	}
	return value, true, nil
}

// Inspect returns the value and absolute expiry of a key using a pipelined GET and PTTL.
func (b *RedisBackend) Inspect(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	full := b.fullKey(key)
	pipe := b.client.Pipeline()
	getCmd := pipe.Get(ctx, full)
	ttlCmd := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, time.Time{}, false, b.wrapError("inspect", err)
	}

	value, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, b.wrapError("get", err)
	}

	var expiresAt time.Time
	if ttl := ttlCmd.Val(); ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	return value, expiresAt, true, nil
}

// Set stores a value with an optional expiration.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, b.fullKey(key), value, ttl).Err(); err != nil {
		return b.wrapError("set", err)
	}
	return nil
}

// Delete removes a key and reports whether it existed.
func (b *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, b.fullKey(key)).Result()
	if err != nil {
		return false, b.wrapError("del", err)
	}
	return n > 0, nil
}

// DeletePrefix removes matching keys using SCAN and batched DEL.
func (b *RedisBackend) DeletePrefix(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(b.fullKey(prefix)) + "*"
	iter := b.client.Scan(ctx, 0, pattern, redisScanBatch).Iterator()

	var removed []string
	batch := make([]string, 0, redisScanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := b.client.Del(ctx, batch...).Err(); err != nil {
			return b.wrapError("del", err)
		}
		for _, k := range batch {
			removed = append(removed, strings.TrimPrefix(k, b.keyPrefix))
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= redisScanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, b.wrapError("scan", err)
	}
	return removed, flush()
}

// Len counts the keys under the backend prefix.
func (b *RedisBackend) Len(ctx context.Context) (int, error) {
	iter := b.client.Scan(ctx, 0, escapeGlob(b.keyPrefix)+"*", redisScanBatch).Iterator()
	n := 0
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return n, b.wrapError("scan", err)
	}
	return n, nil
}

// SizeBytes is not tracked for Redis.
func (b *RedisBackend) SizeBytes(context.Context) (int64, error) {
	return 0, errs.ErrNotImplemented
}

// Ping checks the Redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.wrapError("ping", b.client.Ping(ctx).Err())
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// wrapError maps transport failures to ErrCacheUnavailable.
// Caller cancellation is returned unchanged.
func (b *RedisBackend) wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errs.Unavailable("redis "+op, err)
}

// escapeGlob escapes Redis glob metacharacters so a prefix matches literally.
func escapeGlob(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var (
	_ Backend   = (*RedisBackend)(nil)
	_ Inspector = (*RedisBackend)(nil)
)
