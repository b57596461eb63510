package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/circuitbreaker"
	"github.com/guttosm/entity-gateway/internal/errs"
)

// CircuitBreakerRepository wraps a Repository with circuit breaker protection.
// An open circuit surfaces as a store failure wrapping circuitbreaker.ErrCircuitOpen.
type CircuitBreakerRepository[T Entity] struct {
	repo Repository[T]
	cb   *circuitbreaker.CircuitBreaker
}

// WithCircuitBreaker decorates repo. Not-found results never trip the circuit.
func WithCircuitBreaker[T Entity](repo Repository[T], cfg circuitbreaker.Config) *CircuitBreakerRepository[T] {
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsStoreFailure
	}
	return &CircuitBreakerRepository[T]{repo: repo, cb: circuitbreaker.New(cfg)}
}

// IsStoreFailure reports whether err should count against a circuit.
func IsStoreFailure(err error) bool {
	return !errors.Is(err, errs.ErrNotFound) &&
		!errors.Is(err, errs.ErrValidation) &&
		!errors.Is(err, ErrDuplicateID) &&
		!errors.Is(err, context.Canceled)
}

func (r *CircuitBreakerRepository[T]) wrap(op string, err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return errs.Store(op, err)
	}
	return err
}

// Insert implements Repository.
func (r *CircuitBreakerRepository[T]) Insert(ctx context.Context, entity T) (T, error) {
	out, err := circuitbreaker.Do(ctx, r.cb, func(ctx context.Context) (T, error) {
		return r.repo.Insert(ctx, entity)
	})
	return out, r.wrap("insert", err)
}

// SelectByID implements Repository.
func (r *CircuitBreakerRepository[T]) SelectByID(ctx context.Context, id uuid.UUID) (T, error) {
	out, err := circuitbreaker.Do(ctx, r.cb, func(ctx context.Context) (T, error) {
		return r.repo.SelectByID(ctx, id)
	})
	return out, r.wrap("select", err)
}

// Update implements Repository.
func (r *CircuitBreakerRepository[T]) Update(ctx context.Context, entity T) (T, error) {
	out, err := circuitbreaker.Do(ctx, r.cb, func(ctx context.Context) (T, error) {
		return r.repo.Update(ctx, entity)
	})
	return out, r.wrap("update", err)
}

// Delete implements Repository.
func (r *CircuitBreakerRepository[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	out, err := circuitbreaker.Do(ctx, r.cb, func(ctx context.Context) (bool, error) {
		return r.repo.Delete(ctx, id)
	})
	return out, r.wrap("delete", err)
}

// SelectCandidates implements Repository.
func (r *CircuitBreakerRepository[T]) SelectCandidates(ctx context.Context) ([]T, error) {
	out, err := circuitbreaker.Do(ctx, r.cb, r.repo.SelectCandidates)
	return out, r.wrap("select candidates", err)
}

// Count implements Repository.
func (r *CircuitBreakerRepository[T]) Count(ctx context.Context) (int64, error) {
	out, err := circuitbreaker.Do(ctx, r.cb, r.repo.Count)
	return out, r.wrap("count", err)
}

// CircuitBreaker returns the underlying circuit breaker for monitoring.
func (r *CircuitBreakerRepository[T]) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.cb
}

var _ Repository[Entity] = (*CircuitBreakerRepository[Entity])(nil)
