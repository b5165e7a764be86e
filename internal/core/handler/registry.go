package handler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yndnr/hostgate/internal/core/domain"
)

// Registry is an in-process unit source.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Unit
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]Unit)}
}

// Register adds u. Ids are canonicalised and must be unique.
func (r *Registry) Register(u Unit) error {
	id, err := CanonicalID(u.ID)
	if err != nil {
		return err
	}
	if u.Load == nil {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unit %s has no loader", id))
	}
	u.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.units[id]; exists {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unit %s already registered", id))
	}
	r.units[id] = u
	return nil
}

// MustRegister is Register that panics on error. For package init code.
func (r *Registry) MustRegister(units ...Unit) {
	for _, u := range units {
		if err := r.Register(u); err != nil {
			panic(err)
		}
	}
}

// Unit implements Source.
func (r *Registry) Unit(id string) (Unit, error) {
	cid, err := CanonicalID(id)
	if err != nil {
		return Unit{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[cid]
	if !ok {
		return Unit{}, domain.ErrUnitNotFound.WithDetails(cid)
	}
	return u, nil
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.units))
	for id := range r.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
