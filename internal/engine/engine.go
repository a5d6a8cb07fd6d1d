// Package engine implements the transformation engines behind consumer
// templates. Three engines share one interface: direct evaluates a
// single expression, router picks a catalogued transformation by
// matching conditions against the input document, and pipeline chains
// catalogued transformations sequentially.
package engine

import (
	"context"

	"github.com/canonmorph/canonmorph/internal/util"
)

// Type identifies a transformation engine.
type Type string

// Supported engine types.
const (
	// TypeDirect applies a single transformation expression.
	TypeDirect Type = "direct"

	// TypeRouter evaluates route conditions against the input document
	// and applies the catalogued transformation of the first match.
	TypeRouter Type = "router"

	// TypePipeline applies a sequence of catalogued transformations,
	// feeding each step's output into the next.
	TypePipeline Type = "pipeline"
)

// Types returns all supported engine types in stable order.
func Types() []Type {
	return []Type{TypeDirect, TypeRouter, TypePipeline}
}

// ParseType converts an engine tag into a Type. Unknown tags are
// rejected here rather than deep inside dispatch.
func ParseType(tag string) (Type, error) {
	switch t := Type(tag); t {
	case TypeDirect, TypeRouter, TypePipeline:
		return t, nil
	default:
		return "", util.NewUnsupportedEngineError(tag)
	}
}

// Engine applies a transformation payload to an input document.
//
// Transform never mutates the input document and wraps failures in a
// TransformationError. ValidateExpression returns nil for a payload the
// engine can execute and an ErrInvalidExpression-wrapped error for a
// malformed one; any other error is an infrastructure failure.
type Engine interface {
	Transform(ctx context.Context, input map[string]interface{}, payload string) (map[string]interface{}, error)
	ValidateExpression(ctx context.Context, payload string) error
}

// Registry resolves engine types to their implementations.
type Registry struct {
	engines map[Type]Engine
}

// NewRegistry creates a registry over the three engines.
func NewRegistry(direct, router, pipeline Engine) *Registry {
	return &Registry{
		engines: map[Type]Engine{
			TypeDirect:   direct,
			TypeRouter:   router,
			TypePipeline: pipeline,
		},
	}
}

// Resolve returns the engine registered for the given type.
func (r *Registry) Resolve(t Type) (Engine, error) {
	eng, ok := r.engines[t]
	if !ok || eng == nil {
		return nil, util.NewUnsupportedEngineError(string(t))
	}
	return eng, nil
}

// Types returns the types with a registered engine, in the order the
// engines endpoint lists them.
func (r *Registry) Types() []Type {
	available := make([]Type, 0, len(r.engines))
	for _, t := range Types() {
		if eng, ok := r.engines[t]; ok && eng != nil {
			available = append(available, t)
		}
	}
	return available
}

// deepCopyMap creates a deep copy of a map.
func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}

	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

// deepCopyValue creates a deep copy of a value.
func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		return deepCopySlice(val)
	default:
		return v
	}
}

// deepCopySlice creates a deep copy of a slice.
func deepCopySlice(src []interface{}) []interface{} {
	if src == nil {
		return nil
	}

	dst := make([]interface{}, len(src))
	for i, v := range src {
		dst[i] = deepCopyValue(v)
	}
	return dst
}
