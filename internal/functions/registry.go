// Package functions provides the named helper functions exposed to
// transformation expressions.
package functions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
)

// Function is a named helper callable from transformation expressions.
type Function struct {
	// Name is the identifier the function is invoked by.
	Name string

	// Description explains what the function does.
	Description string

	// Option declares the function to the expression environment.
	Option cel.EnvOption
}

// Registry holds the helper functions available to expressions.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry creates a registry populated with the built-in helpers.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, fn := range builtins() {
		r.funcs[fn.Name] = fn
	}
	return r
}

// NewEmptyRegistry creates a registry with no functions registered.
func NewEmptyRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Function),
	}
}

// Register adds a helper function. Registering an existing name is an error.
func (r *Registry) Register(fn Function) error {
	if fn.Name == "" {
		return fmt.Errorf("function name is required")
	}
	if fn.Option == nil {
		return fmt.Errorf("function %s has no environment option", fn.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[fn.Name]; exists {
		return fmt.Errorf("function %s is already registered", fn.Name)
	}
	r.funcs[fn.Name] = fn
	return nil
}

// Unregister removes a helper function. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, name)
}

// Lookup returns the named function.
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// Clear removes all registered functions.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs = make(map[string]Function)
}

// Options returns the environment options for all registered functions
// in name order.
func (r *Registry) Options() []cel.EnvOption {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts := make([]cel.EnvOption, 0, len(r.funcs))
	for _, name := range r.sortedNames() {
		opts = append(opts, r.funcs[name].Option)
	}
	return opts
}

// sortedNames returns function names sorted. Callers must hold the lock.
func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
