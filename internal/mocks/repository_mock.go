// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/repository"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of repository.Repository.
type MockRepository[T repository.Entity] struct {
	mock.Mock
}

func (m *MockRepository[T]) Insert(ctx context.Context, entity T) (T, error) {
	args := m.Called(ctx, entity)
	return value[T](args.Get(0)), args.Error(1)
}

func (m *MockRepository[T]) SelectByID(ctx context.Context, id uuid.UUID) (T, error) {
	args := m.Called(ctx, id)
	return value[T](args.Get(0)), args.Error(1)
}

func (m *MockRepository[T]) Update(ctx context.Context, entity T) (T, error) {
	args := m.Called(ctx, entity)
	return value[T](args.Get(0)), args.Error(1)
}

func (m *MockRepository[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository[T]) SelectCandidates(ctx context.Context) ([]T, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]T), args.Error(1)
}

func (m *MockRepository[T]) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func value[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

var _ repository.Repository[repository.Entity] = (*MockRepository[repository.Entity])(nil)
