// Package catalog resolves transformation identifiers used by catalog-ref
// pipeline steps to the expressions registered for them.
//
// A Catalog answers read-only lookups during transformation. A Store adds
// the administrative write surface. Two backends are provided: an
// in-memory store seeded from configuration and a Redis-backed store with
// circuit breaker protection for lookups.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/canonmorph/canonmorph/internal/util"
)

// ErrUnknownTransformation matches lookups of unregistered transformation
// identifiers. Use errors.Is to test for it.
var ErrUnknownTransformation = errors.New("unknown transformation")

// UnknownTransformationError reports a lookup of an identifier that has no
// catalog entry.
type UnknownTransformationError struct {
	ID string
}

// Error implements the error interface.
func (e *UnknownTransformationError) Error() string {
	return "unknown transformation: " + e.ID
}

// Is reports whether the target matches ErrUnknownTransformation or
// util.ErrNotFound.
func (e *UnknownTransformationError) Is(target error) bool {
	return target == ErrUnknownTransformation || target == util.ErrNotFound
}

// NewUnknownTransformationError creates an UnknownTransformationError for
// the given identifier.
func NewUnknownTransformationError(id string) *UnknownTransformationError {
	return &UnknownTransformationError{ID: id}
}

// Entry binds a transformation identifier to its expression.
type Entry struct {
	// ID is the identifier referenced by catalog-ref pipeline steps.
	ID string `json:"id"`

	// Expression is the transformation expression registered for the ID.
	Expression string `json:"expression"`

	// Description is free-form documentation for the entry.
	Description string `json:"description,omitempty"`
}

// Catalog resolves transformation identifiers to expressions.
type Catalog interface {
	// Lookup returns the expression registered for the given identifier.
	// Unknown identifiers return an UnknownTransformationError.
	Lookup(ctx context.Context, id string) (string, error)
}

// Store extends Catalog with the administrative write surface.
type Store interface {
	Catalog

	// Put creates or replaces an entry.
	Put(ctx context.Context, entry Entry) error

	// Get returns the full entry for the given identifier.
	Get(ctx context.Context, id string) (Entry, error)

	// Delete removes an entry. Unknown identifiers return an
	// UnknownTransformationError.
	Delete(ctx context.Context, id string) error

	// List returns all entries sorted by identifier.
	List(ctx context.Context) ([]Entry, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// validateEntry checks that an entry is storable.
func validateEntry(entry Entry) error {
	if err := util.ValidateIdentifier(entry.ID, "id"); err != nil {
		return err
	}
	if strings.TrimSpace(entry.Expression) == "" {
		return util.NewValidationError("catalog entry expression is required")
	}
	return nil
}
