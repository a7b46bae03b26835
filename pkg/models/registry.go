package models

import (
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
)

// Constructor builds an uninitialised model.
type Constructor func() Model

// Registry maps model names to constructors. Constructors run only when a
// model is requested.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

// DefaultRegistry returns a registry holding the built-in models.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(LinearName, NewLinear)
	_ = r.Register(RidgeName, NewRidge)

	return r
}

func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" {
		return pkgerrors.ErrEmptyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ctors[name]; ok {
		return fmt.Errorf("%w: model %s", pkgerrors.ErrEntityExists, name)
	}
	r.ctors[name] = ctor

	return nil
}

func (r *Registry) New(name string) (Model, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", pkgerrors.ErrConfiguration, name)
	}

	return ctor(), nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}
