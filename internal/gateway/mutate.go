package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/metrics"
)

type opKind int

const (
	opUpdate opKind = iota + 1
	opDelete
)

// Operation is a persistence mutation applied through Mutate.
type Operation[T any] struct {
	kind  opKind
	apply func(current T) (T, error)
}

// UpdateOp builds an update-class operation. fn receives the persisted entity
// and returns its replacement; it must not change the id.
func UpdateOp[T any](fn func(current T) (T, error)) Operation[T] {
	return Operation[T]{kind: opUpdate, apply: fn}
}

// DeleteOp builds a delete-class operation.
func DeleteOp[T any]() Operation[T] {
	return Operation[T]{kind: opDelete}
}

// Mutate applies op to the entity with id. Persistence runs first; invalidation
// and repopulation then run to completion even if ctx is canceled. A delete of
// a missing entity returns errs.ErrNotFound after still evicting its key.
func (g *Gateway[T]) Mutate(ctx context.Context, id uuid.UUID, op Operation[T]) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	switch op.kind {
	case opUpdate:
		current, err := g.repo.SelectByID(ctx, id)
		if err != nil {
			g.recordWrite("update", err)
			return zero, err
		}
		next, err := op.apply(current)
		if err != nil {
			g.recordWrite("update", err)
			return zero, err
		}
		if next.GetID() != id {
			err := errs.NewValidationError("id", "cannot be changed")
			g.recordWrite("update", err)
			return zero, err
		}
		saved, err := g.update(ctx, next)
		if err != nil {
			return zero, err
		}
		return saved, nil

	case opDelete:
		existed, err := g.repo.Delete(ctx, id)
		if err != nil {
			g.recordWrite("delete", err)
			return zero, err
		}
		g.afterDelete(context.WithoutCancel(ctx), id)
		if !existed {
			g.recordWrite("delete", errs.ErrNotFound)
			return zero, errs.ErrNotFound
		}
		g.recordWrite("delete", nil)
		return zero, nil
	}
	return zero, errs.ErrNotImplemented
}

// Create validates and inserts entity. A nil id is replaced with a new one.
func (g *Gateway[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	id := entity.GetID()
	if id == uuid.Nil {
		id = g.opts.newID()
	}
	if c, ok := any(entity).(Creatable[T]); ok {
		entity = c.Created(id, g.opts.now())
	}
	if entity.GetID() == uuid.Nil {
		err := errs.NewValidationError("id", "is required")
		g.recordWrite("create", err)
		return zero, err
	}
	if err := validate(entity); err != nil {
		g.recordWrite("create", err)
		return zero, err
	}

	saved, err := g.repo.Insert(ctx, entity)
	if err != nil {
		g.recordWrite("create", err)
		return zero, err
	}
	g.afterWrite(context.WithoutCancel(ctx), saved)
	g.recordWrite("create", nil)
	return saved, nil
}

// Update replaces the persisted entity with entity.
func (g *Gateway[T]) Update(ctx context.Context, entity T) (T, error) {
	return g.Mutate(ctx, entity.GetID(), UpdateOp(func(T) (T, error) {
		return entity, nil
	}))
}

// Delete removes the entity with id and reports whether it existed.
func (g *Gateway[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := g.Mutate(ctx, id, DeleteOp[T]())
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Save updates entity when it exists and creates it otherwise.
func (g *Gateway[T]) Save(ctx context.Context, entity T) (T, error) {
	if entity.GetID() == uuid.Nil {
		return g.Create(ctx, entity)
	}
	_, err := g.repo.SelectByID(ctx, entity.GetID())
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return g.Create(ctx, entity)
	case err != nil:
		return entity, err
	}
	return g.Update(ctx, entity)
}

// Upsert is an alias of Save.
func (g *Gateway[T]) Upsert(ctx context.Context, entity T) (T, error) {
	return g.Save(ctx, entity)
}

func (g *Gateway[T]) update(ctx context.Context, next T) (T, error) {
	var zero T
	if t, ok := any(next).(Touchable[T]); ok {
		next = t.Touched(g.opts.now())
	}
	if err := validate(next); err != nil {
		g.recordWrite("update", err)
		return zero, err
	}
	saved, err := g.repo.Update(ctx, next)
	if err != nil {
		g.recordWrite("update", err)
		return zero, err
	}
	g.afterWrite(context.WithoutCancel(ctx), saved)
	g.recordWrite("update", nil)
	return saved, nil
}

// afterWrite runs the strategy and writes the new value back.
func (g *Gateway[T]) afterWrite(ctx context.Context, saved T) {
	res := g.engine.Invalidate(ctx, g.cfg.EntityType, saved.GetID())
	if !res.OK() {
		g.log.Warn().
			Str("id", saved.GetID().String()).
			Int("failures", len(res.Failures)).
			Msg("Invalidation incomplete after write")
	}
	g.populate(ctx, saved, g.engine.Generation(g.cfg.EntityType))
}

// afterDelete runs the strategy and leaves the entity key absent.
func (g *Gateway[T]) afterDelete(ctx context.Context, id uuid.UUID) {
	res := g.engine.Invalidate(ctx, g.cfg.EntityType, id)
	if !res.OK() {
		g.log.Warn().
			Str("id", id.String()).
			Int("failures", len(res.Failures)).
			Msg("Invalidation incomplete after delete")
	}
	if _, err := g.engine.InvalidateKey(ctx, g.cfg.EntityKey(id)); err != nil {
		g.log.Warn().Err(err).Str("id", id.String()).Msg("Deleted entity still cached")
	}
}

func (g *Gateway[T]) recordWrite(op string, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrValidation):
		result = "invalid"
	case errors.Is(err, errs.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.RecordGatewayOperation(g.cfg.EntityType, op, result)
}

func validate(v any) error {
	if val, ok := v.(Validatable); ok {
		return val.Validate()
	}
	return nil
}
