//go:build !integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/circuitbreaker"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/mocks"
	"github.com/guttosm/entity-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID uuid.UUID
}

func (i item) GetID() uuid.UUID { return i.ID }

func breakerConfig(name string) circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
		Name:             name,
	}
}

func TestWithCircuitBreaker_OpensOnStoreFailures(t *testing.T) {
	ctx := context.Background()
	inner := &mocks.MockRepository[item]{}
	storeErr := errs.Store("select", errors.New("connection refused"))
	inner.On("SelectByID", mock.Anything, mock.Anything).Return(nil, storeErr).Times(2)

	repo := repository.WithCircuitBreaker[item](inner, breakerConfig("items-open"))

	for i := 0; i < 2; i++ {
		_, err := repo.SelectByID(ctx, uuid.New())
		assert.ErrorIs(t, err, errs.ErrStoreFailure)
	}
	require.True(t, repo.CircuitBreaker().IsOpen())

	_, err := repo.SelectByID(ctx, uuid.New())
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.ErrorIs(t, err, errs.ErrStoreFailure)
	inner.AssertNumberOfCalls(t, "SelectByID", 2)
}

func TestWithCircuitBreaker_NotFoundDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	inner := &mocks.MockRepository[item]{}
	inner.On("SelectByID", mock.Anything, mock.Anything).Return(nil, errs.ErrNotFound)
	inner.On("Insert", mock.Anything, mock.Anything).Return(nil, errs.Store("insert", repository.ErrDuplicateID))

	repo := repository.WithCircuitBreaker[item](inner, breakerConfig("items-not-found"))

	for i := 0; i < 5; i++ {
		_, err := repo.SelectByID(ctx, uuid.New())
		assert.ErrorIs(t, err, errs.ErrNotFound)
		_, err = repo.Insert(ctx, item{ID: uuid.New()})
		assert.ErrorIs(t, err, repository.ErrDuplicateID)
	}
	assert.Equal(t, circuitbreaker.StateClosed, repo.CircuitBreaker().State())
}

func TestWithCircuitBreaker_PassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := &mocks.MockRepository[item]{}
	it := item{ID: uuid.New()}
	inner.On("Insert", mock.Anything, it).Return(it, nil)
	inner.On("Update", mock.Anything, it).Return(it, nil)
	inner.On("Delete", mock.Anything, it.ID).Return(true, nil)
	inner.On("SelectCandidates", mock.Anything).Return([]item{it}, nil)
	inner.On("Count", mock.Anything).Return(int64(1), nil)

	repo := repository.WithCircuitBreaker[item](inner, breakerConfig("items-pass"))

	got, err := repo.Insert(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, it, got)

	got, err = repo.Update(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, it, got)

	removed, err := repo.Delete(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	list, err := repo.SelectCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []item{it}, list)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	inner.AssertExpectations(t)
}

func TestIsStoreFailure(t *testing.T) {
	assert.True(t, repository.IsStoreFailure(errs.Store("x", errors.New("down"))))
	assert.False(t, repository.IsStoreFailure(errs.ErrNotFound))
	assert.False(t, repository.IsStoreFailure(errs.NewValidationError("name", "required")))
	assert.False(t, repository.IsStoreFailure(context.Canceled))
}
