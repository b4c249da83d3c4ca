package proxy

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor creates an unloaded proxy bound to loader and identifier
type Constructor func(loader Loader, identifier string) Proxy

// Definition is a proxy type registered under its mangled name
type Definition struct {
	Name        string
	SourceClass string
	New         Constructor
}

// Registry holds the proxy definitions compiled into the running process
type Registry struct {
	defs map[string]Definition
	mu   sync.RWMutex
}

// DefaultRegistry is the registry generated code registers into
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register adds a definition under name. A second registration under an existing name is a
// no-op, whatever its content; the return value reports whether def was stored.
func (r *Registry) Register(def Definition) (bool, error) {
	if def.Name == "" {
		return false, fmt.Errorf("proxy: empty definition name")
	}
	if def.New == nil {
		return false, fmt.Errorf("proxy: nil constructor for %s", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return false, nil
	}
	r.defs[def.Name] = def
	return true, nil
}

// Lookup returns the definition registered under name
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// Exists reports whether a definition is registered under name
func (r *Registry) Exists(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// New instantiates the definition registered under name
func (r *Registry) New(name string, loader Loader, identifier string) (Proxy, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return def.New(loader, identifier), nil
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a definition to DefaultRegistry. It panics on an invalid definition, like
// database/sql.Register, since it only runs from generated init functions.
func Register(name, sourceClass string, ctor Constructor) {
	_, err := DefaultRegistry.Register(Definition{
		Name:        name,
		SourceClass: sourceClass,
		New:         ctor,
	})
	if err != nil {
		panic(err)
	}
}
