package modifier

import (
	"fmt"
	"sync"
)

// Registry maps string keys (doctrine/trait/item names persisted on actors)
// to their units. Safe for concurrent reads; Register should only be called
// at startup.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Unit
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]Unit)}
}

// Register adds a unit under its own id. Panics on duplicates to surface
// misconfiguration early.
func (r *Registry) Register(u Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.units[u.ID()]; exists {
		panic(fmt.Sprintf("modifier registry: duplicate unit %q", u.ID()))
	}
	r.units[u.ID()] = u
}

// Get returns the unit registered under id.
func (r *Registry) Get(id string) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return nil, fmt.Errorf("no modifier unit registered for %q", id)
	}
	return u, nil
}

// Collect resolves a list of unit ids, skipping empty ids. Unknown ids are
// an error: an actor referencing an unregistered doctrine or item is a data
// problem worth surfacing, not silently ignoring.
func (r *Registry) Collect(ids ...string) ([]Unit, error) {
	units := make([]Unit, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		u, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}
