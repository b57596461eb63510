// Package repository provides the persistence collaborators of the entity gateway.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateID is returned when inserting an entity whose id already exists.
var ErrDuplicateID = errors.New("duplicate id")

// Entity is a persisted value identified by a UUID.
type Entity interface {
	GetID() uuid.UUID
}

// Repository is the source of truth for one entity type.
// SelectByID and Update return errs.ErrNotFound for a missing id; every other
// failure matches errs.ErrStoreFailure.
type Repository[T Entity] interface {
	Insert(ctx context.Context, entity T) (T, error)
	SelectByID(ctx context.Context, id uuid.UUID) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	// Delete reports whether the entity existed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// SelectCandidates returns every entity of the type, for query evaluation.
	SelectCandidates(ctx context.Context) ([]T, error)
	Count(ctx context.Context) (int64, error)
}
