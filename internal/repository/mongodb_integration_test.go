//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/circuitbreaker"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoDB_Integration(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	t.Run("connection successful", func(t *testing.T) {
		assert.NotNil(t, db.Client)
		assert.NotNil(t, db.Database)
	})

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, db.Check(ctx))
	})
}

func TestMongoRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo, err := NewMongoRepository[note](ctx, db, "notes", Index("created_at"))
	require.NoError(t, err)

	n := newNote("first")
	_, err = repo.Insert(ctx, n)
	require.NoError(t, err)

	_, err = repo.Insert(ctx, n)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorIs(t, err, errs.ErrStoreFailure)

	got, err := repo.SelectByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "first", got.Title)
	assert.True(t, n.CreatedAt.Equal(got.CreatedAt))

	n.Title = "renamed"
	_, err = repo.Update(ctx, n)
	require.NoError(t, err)
	got, err = repo.SelectByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	_, err = repo.Update(ctx, newNote("ghost"))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = repo.SelectByID(ctx, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	removed, err := repo.Delete(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Delete(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMongoRepository_CandidatesAndCount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo, err := NewMongoRepository[note](ctx, db, "notes")
	require.NoError(t, err)

	for _, title := range []string{"a", "b", "c"} {
		_, err := repo.Insert(ctx, newNote(title))
		require.NoError(t, err)
	}

	candidates, err := repo.SelectCandidates(ctx)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMongoRepository_WithCircuitBreaker(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	inner, err := NewMongoRepository[note](ctx, db, "notes")
	require.NoError(t, err)

	repo := WithCircuitBreaker[note](inner, circuitbreaker.Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          100 * time.Millisecond,
		Name:             "notes-integration",
	})

	n := newNote("guarded")
	_, err = repo.Insert(ctx, n)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = repo.SelectByID(ctx, uuid.New())
		assert.ErrorIs(t, err, errs.ErrNotFound)
	}
	assert.Equal(t, circuitbreaker.StateClosed, repo.CircuitBreaker().State())

	require.NoError(t, db.Client.Disconnect(ctx))
	for i := 0; i < 2; i++ {
		_, err = repo.SelectByID(ctx, n.ID)
		assert.ErrorIs(t, err, errs.ErrStoreFailure)
	}
	assert.True(t, repo.CircuitBreaker().IsOpen())
}
