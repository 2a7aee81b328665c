package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Func is a tool function. args are JSON-shaped values: float64, string,
// bool, nil, []any and map[string]any.
type Func func(ctx context.Context, args []any) (any, error)

// Module is the interface that all tool modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered functions for a single process.
type Registry struct {
	funcs map[string]Func
}

// New creates a registry populated by the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

func key(module, function string) string {
	return module + "." + function
}

// RegisterFunction binds module.function to fn. Registering the same name
// twice is a programming error and panics.
func (r *Registry) RegisterFunction(module, function string, fn Func) {
	if module == "" || function == "" {
		panic("registry: module and function names must not be empty")
	}
	k := key(module, function)
	if _, exists := r.funcs[k]; exists {
		panic(fmt.Sprintf("function '%s' already registered", k))
	}
	slog.Debug("Registering function.", "name", k)
	r.funcs[k] = fn
}

// Lookup returns the function registered as module.function.
func (r *Registry) Lookup(module, function string) (Func, error) {
	if fn, ok := r.funcs[key(module, function)]; ok {
		return fn, nil
	}
	if !r.hasModule(module) {
		return nil, fmt.Errorf("unknown module '%s'", module)
	}
	return nil, fmt.Errorf("module '%s' has no function '%s'", module, function)
}

func (r *Registry) hasModule(module string) bool {
	prefix := module + "."
	for k := range r.funcs {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// Dispatch looks up and calls module.function. It implements rpc.Dispatcher.
func (r *Registry) Dispatch(ctx context.Context, module, function string, args []any) (any, error) {
	fn, err := r.Lookup(module, function)
	if err != nil {
		return nil, err
	}
	return fn(ctx, args)
}

// Names lists every registered "module.function" in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
