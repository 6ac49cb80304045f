package job

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/jobrun"
)

// Definition pairs a descriptor with its body.
type Definition struct {
	Descriptor Descriptor
	Body       Body
}

// Registry maps job names to definitions.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register validates d and stores it with body. Names are unique.
func (r *Registry) Register(d Descriptor, body Body) error {
	if body == nil {
		return fmt.Errorf("register %q: %w", d.Name, jobrun.ErrNoBody)
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("register %q: %w", d.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Name]; exists {
		return fmt.Errorf("register %q: %w", d.Name, jobrun.ErrJobAlreadyExists)
	}
	r.defs[d.Name] = Definition{Descriptor: d, Body: body}
	return nil
}

// Get returns the definition for the given job name.
// Returns false if no job is registered under that name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Remove deletes a job. It reports whether the job existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.defs[name]
	delete(r.defs, name)
	return ok
}

// Names returns all registered job names in lexical order.
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
