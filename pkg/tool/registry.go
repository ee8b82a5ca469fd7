package tool

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ToolFactory builds a Tool from configuration.
type ToolFactory func(config map[string]any) (Tool, error)

// Registry maps canonical tool names to handlers. Tools registered through a
// factory are built on first lookup and kept.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	tool    Tool
	factory ToolFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// RegisterFactory registers a lazily built tool under name. A later
// registration under the same name replaces the earlier one.
func (r *Registry) RegisterFactory(name string, factory ToolFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registryEntry{factory: factory}
}

// RegisterInstance registers t under its schema name.
func (r *Registry) RegisterInstance(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[t.Name()] = &registryEntry{tool: t}
}

// Create builds a fresh tool from its factory with config. Tools registered
// as instances are returned as is.
func (r *Registry) Create(name string, config map[string]any) (Tool, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ToolNotFoundError{Name: name, Available: r.Names()}
	}
	if e.factory == nil {
		return e.tool, nil
	}
	return e.factory(config)
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	t, err := r.resolve(e)
	return t, err == nil
}

// resolve builds a factory entry once.
func (r *Registry) resolve(e *registryEntry) (Tool, error) {
	r.mu.RLock()
	t := e.tool
	r.mu.RUnlock()
	if t != nil {
		return t, nil
	}

	t, err := e.factory(nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e.tool == nil {
		e.tool = t
	}
	return e.tool, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns every tool that can be built, sorted by name. Factories that
// fail without configuration are skipped.
func (r *Registry) List() []Tool {
	var list []Tool
	for _, name := range r.Names() {
		if t, ok := r.Get(name); ok {
			list = append(list, t)
		}
	}
	return list
}

// Remove unregisters name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Find resolves a name as a model may spell it: exact, in another case, or
// as the Go style type name of the tool ("GetShipmentDate").
func (r *Registry) Find(name string) Tool {
	if t, ok := r.Get(name); ok {
		return t
	}

	canonical := SnakeCase(name)
	for _, n := range r.Names() {
		if strings.EqualFold(n, name) || n == canonical {
			if t, ok := r.Get(n); ok {
				return t
			}
		}
	}
	return nil
}

// ToolNotFoundError indicates a requested tool is missing.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("tool %q not found, no tools registered", e.Name)
	}
	return fmt.Sprintf("tool %q not found, available: %s", e.Name, strings.Join(e.Available, ", "))
}
