//go:build integration

package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// shared holds one lazily started container per package test binary.
type shared struct {
	once      sync.Once
	mu        sync.RWMutex
	container *Container
	err       error
	start     func(context.Context) (*Container, error)
}

func (s *shared) get(ctx context.Context) (*Container, error) {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.container, s.err = s.start(ctx)
	})

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.container, nil
}

func (s *shared) cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.container != nil {
		return s.container.Cleanup(ctx)
	}
	return nil
}

func (s *shared) uri(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.container == nil {
		panic("shared " + name + " container not initialized")
	}
	return s.container.URI
}

var (
	sharedMongo = &shared{start: SetupMongoDB}
	sharedRedis = &shared{start: SetupRedis}
)

// GetSharedMongoDB returns the package-wide MongoDB container, starting it on first use.
func GetSharedMongoDB(ctx context.Context) (*Container, error) {
	return sharedMongo.get(ctx)
}

// GetSharedRedis returns the package-wide Redis container, starting it on first use.
func GetSharedRedis(ctx context.Context) (*Container, error) {
	return sharedRedis.get(ctx)
}

// SharedMongoURI returns the URI of the shared MongoDB container.
// Panics if the container is not initialized.
func SharedMongoURI() string {
	return sharedMongo.uri("MongoDB")
}

// SharedRedisAddr returns the host:port of the shared Redis container.
// Panics if the container is not initialized.
func SharedRedisAddr() string {
	return sharedRedis.uri("Redis")
}

// SetupTestMainWithMongoDB starts the shared MongoDB container, runs the tests and tears it down.
//
//	func TestMain(m *testing.M) {
//		os.Exit(testutil.SetupTestMainWithMongoDB(context.Background(), m))
//	}
func SetupTestMainWithMongoDB(ctx context.Context, m *testing.M) int {
	return runWith(ctx, m, "MongoDB", sharedMongo)
}

// SetupTestMainWithRedis starts the shared Redis container, runs the tests and tears it down.
func SetupTestMainWithRedis(ctx context.Context, m *testing.M) int {
	return runWith(ctx, m, "Redis", sharedRedis)
}

func runWith(ctx context.Context, m *testing.M, name string, s *shared) int {
	if _, err := s.get(ctx); err != nil {
		panic(err)
	}

	code := m.Run()

	if err := s.cleanup(ctx); err != nil {
		// Docker reaps the container anyway.
		_, _ = os.Stderr.WriteString("Warning: failed to cleanup shared " + name + " container: " + err.Error() + "\n")
	}
	return code
}

// SanitizeName turns a test name into a valid database or key-prefix name:
// path separators become underscores, the result is truncated to 50
// characters and a timestamp suffix is appended for uniqueness.
func SanitizeName(testName string) string {
	sanitized := strings.NewReplacer("/", "_", "\\", "_").Replace(testName)
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}
	return sanitized + "_" + fmt.Sprintf("%d", time.Now().UnixNano()%1000000)
}
