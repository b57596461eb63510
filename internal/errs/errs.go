// Package errs defines the error taxonomy shared by the cache, query and gateway layers.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCacheUnavailable is returned when the cache backend cannot be reached.
	// Reads degrade to persistence and writes skip population.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrSerialization is returned when a value cannot be encoded or decoded.
	ErrSerialization = errors.New("serialization error")
	// ErrNotFound indicates the persistence layer has no entity for the id.
	ErrNotFound = errors.New("entity not found")
	// ErrValidation indicates an entity failed its invariants before a mutation.
	ErrValidation = errors.New("validation error")
	// ErrStoreFailure wraps persistence-layer errors.
	ErrStoreFailure = errors.New("store failure")
	// ErrInvalidationFailure is logged when an eviction could not be applied.
	ErrInvalidationFailure = errors.New("invalidation failure")
	// ErrNotImplemented is returned for operations a collaborator does not support.
	ErrNotImplemented = errors.New("not implemented")
)

// FieldError describes one failed field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the field-level details of a failed validation.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Store wraps a persistence error so callers can match ErrStoreFailure while
// keeping the driver error in the chain.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreFailure) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}

// Unavailable wraps a cache backend error as ErrCacheUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCacheUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCacheUnavailable, err)
}

// Serialization wraps a codec error as ErrSerialization.
func Serialization(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrSerialization, err)
}
