// Package plugin implements the vtable-swap contract the core uses
// to talk to external collaborators: the windowing system, the
// shader compiler, image decoders, the shader file watcher and the
// log sink. Each collaborator registers a single implementation
// value under a well-known name; the registry swaps it atomically,
// so a reload never leaves a caller holding a half-updated vtable.
//
// A caller looks a collaborator up by name through a Registry and
// type asserts the result to the interface it expects (see Get).
// The core packages in this module do not consult a Registry: the
// renderer and pipeline manager take their shader compiler as a
// constructor argument, and nothing else is looked up here.
package plugin

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Registry holds named plugin implementations and allows them to
// be swapped atomically. The zero value is ready to use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*atomic.Pointer[any]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*atomic.Pointer[any])}
}

// Register installs impl under name, replacing any previous value.
// Existing holders of a Lookup result keep seeing the old value
// until they call Lookup again.
func (r *Registry) Register(name string, impl any) {
	r.mu.Lock()
	if r.entries == nil {
		r.entries = make(map[string]*atomic.Pointer[any])
	}
	p, ok := r.entries[name]
	if !ok {
		p = new(atomic.Pointer[any])
		r.entries[name] = p
	}
	r.mu.Unlock()
	p.Store(&impl)
}

// Lookup returns the implementation currently registered under
// name, or false if nothing has ever been registered under it.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	p, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	v := p.Load()
	if v == nil {
		return nil, false
	}
	return *v, true
}

// Names returns the set of registered plugin names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	return names
}

// Unregister removes name from the registry. It is a no-op if
// name was never registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()
}

// ErrNotRegistered is returned by Get when name has no registered
// implementation.
type ErrNotRegistered struct{ Name string }

func (e *ErrNotRegistered) Error() string {
	return fmt.Sprintf("plugin: %q not registered", e.Name)
}

// Get looks up name and asserts it to type T, returning
// ErrNotRegistered or a type-mismatch error on failure.
func Get[T any](r *Registry, name string) (T, error) {
	var zero T
	v, ok := r.Lookup(name)
	if !ok {
		return zero, &ErrNotRegistered{Name: name}
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("plugin: %q does not implement %T", name, zero)
	}
	return t, nil
}

// Well-known plugin names for the core's external collaborators.
const (
	Windowing     = "windowing"
	ShaderCompile = "shader-compiler"
	ImageDecode   = "image-decoder"
	FileWatch     = "file-watcher"
	LogSink       = "log-sink"
)
