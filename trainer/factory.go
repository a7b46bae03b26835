package trainer

import (
	"fmt"
	"sort"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
)

// Constructor builds a trainer from options.
type Constructor func(Options) (Trainer, error)

// Factory maps competition names to trainer constructors.
type Factory map[string]Constructor

// DefaultFactory returns the trainers of the built-in competitions.
func DefaultFactory() Factory {
	return Factory{
		"bengali": NewClassifier,
		"imdb":    NewClassifier,
		"google":  NewClassifier,
		"numerai": NewRegressor,
	}
}

func (f Factory) Get(name string) (Constructor, error) {
	ctor, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: trainer %q", pkgerrors.ErrConfiguration, pkgerrors.ErrUnknownDomain, name)
	}

	return ctor, nil
}

func (f Factory) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}
