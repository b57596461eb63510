package repository

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/errs"
)

// MemoryRepository is an in-process Repository backed by a map.
// Entities are copied through a codec on the way in and out, so callers
// never share slices or maps with the stored values.
type MemoryRepository[T Entity] struct {
	mu    sync.RWMutex
	items map[uuid.UUID]T
	codec cache.Codec[T]
}

// NewMemoryRepository creates an empty repository, optionally seeded.
func NewMemoryRepository[T Entity](seed ...T) *MemoryRepository[T] {
	r := &MemoryRepository[T]{
		items: make(map[uuid.UUID]T, len(seed)),
		codec: cache.JSONCodec[T]{},
	}
	for _, e := range seed {
		if c, err := r.clone(e); err == nil {
			e = c
		}
		r.items[e.GetID()] = e
	}
	return r
}

// clone returns a deep copy of v.
func (r *MemoryRepository[T]) clone(v T) (T, error) {
	data, err := r.codec.Encode(v)
	if err != nil {
		return v, err
	}
	return r.codec.Decode(data)
}

// cloneOut copies a stored value for a caller.
func (r *MemoryRepository[T]) cloneOut(op string, v T) (T, error) {
	c, err := r.clone(v)
	if err != nil {
		var zero T
		return zero, errs.Store(op, err)
	}
	return c, nil
}

// Insert implements Repository.
func (r *MemoryRepository[T]) Insert(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, errs.Store("insert", err)
	}
	stored, err := r.clone(entity)
	if err != nil {
		return zero, errs.Store("insert", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := entity.GetID()
	if _, exists := r.items[id]; exists {
		return zero, errs.Store("insert", ErrDuplicateID)
	}
	r.items[id] = stored
	return r.cloneOut("insert", stored)
}

// SelectByID implements Repository.
func (r *MemoryRepository[T]) SelectByID(ctx context.Context, id uuid.UUID) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, errs.Store("select", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return zero, errs.ErrNotFound
	}
	return r.cloneOut("select", e)
}

// Update implements Repository.
func (r *MemoryRepository[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, errs.Store("update", err)
	}
	stored, err := r.clone(entity)
	if err != nil {
		return zero, errs.Store("update", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := entity.GetID()
	if _, ok := r.items[id]; !ok {
		return zero, errs.ErrNotFound
	}
	r.items[id] = stored
	return r.cloneOut("update", stored)
}

// Delete implements Repository.
func (r *MemoryRepository[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errs.Store("delete", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

// SelectCandidates implements Repository. Entities are returned in id order.
func (r *MemoryRepository[T]) SelectCandidates(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Store("select candidates", err)
	}
	r.mu.RLock()
	out := make([]T, 0, len(r.items))
	for _, e := range r.items {
		c, err := r.cloneOut("select candidates", e)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].GetID(), out[j].GetID()
		return bytes.Compare(a[:], b[:]) < 0
	})
	return out, nil
}

// Count implements Repository.
func (r *MemoryRepository[T]) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Store("count", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}

var _ Repository[Entity] = (*MemoryRepository[Entity])(nil)
