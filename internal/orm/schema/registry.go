package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrClassNotFound is returned when no metadata is registered for a class
var ErrClassNotFound = errors.New("class metadata not found")

// Registry is the metadata catalog of all mapped classes
type Registry struct {
	classes   map[string]*ClassDescriptor
	validator *DescriptorValidator
	mu        sync.RWMutex
}

// NewRegistry creates a new metadata registry
func NewRegistry() *Registry {
	return &Registry{
		classes:   make(map[string]*ClassDescriptor),
		validator: NewDescriptorValidator(),
	}
}

// Register validates and registers a new class descriptor
func (r *Registry) Register(desc *ClassDescriptor) error {
	if err := r.validator.ValidateStructural(desc); err != nil {
		return fmt.Errorf("metadata validation failed for %s: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[desc.Name]; exists {
		return fmt.Errorf("class %s is already registered", desc.Name)
	}
	r.classes[desc.Name] = desc
	return nil
}

// RegisterAll registers every descriptor, stopping at the first error
func (r *Registry) RegisterAll(descs []*ClassDescriptor) error {
	for _, desc := range descs {
		if err := r.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

// HasMetadataFor returns true if metadata is registered under name
func (r *Registry) HasMetadataFor(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.classes[name]
	return exists
}

// SetMetadataFor stores desc under name, replacing any previous entry.
// Unlike Register it performs no validation; proxy types reuse their source's metadata.
func (r *Registry) SetMetadataFor(name string, desc *ClassDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.classes[name] = desc
}

// GetClassMetadata returns the descriptor registered under name
func (r *Registry) GetClassMetadata(name string) (*ClassDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, exists := r.classes[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return desc, nil
}

// All returns the registered descriptors sorted by name
func (r *Registry) All() []*ClassDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ClassDescriptor, 0, len(r.classes))
	for _, desc := range r.classes {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// List returns the registered names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered entries
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.classes)
}

// Clear removes all registered entries (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.classes = make(map[string]*ClassDescriptor)
}
