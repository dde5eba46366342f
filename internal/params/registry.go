// Package params holds the static registry of quality parameters the metrics
// accept. Each parameter names its catalog column, the domain its values must
// satisfy, and the default tolerance window applied when a caller supplies a
// value without limits. The batch driver validates CSV column names against
// this registry instead of accepting arbitrary columns.
package params

import (
	"fmt"
	"sort"

	"periodqc/internal/errors"
)

// Spec describes one registered quality parameter.
type Spec struct {
	Name         string
	Column       string
	DefaultLower float64
	DefaultUpper float64
	// Validate enforces the parameter's value domain. Nil means unbounded.
	Validate func(v float64) error
}

// Registry maps parameter names to their specs.
type Registry struct {
	specs map[string]Spec
}

// Default returns the registry for the shipped catalog: Lomb-Scargle power,
// TESS magnitude, and signal-to-noise ratio.
func Default() *Registry {
	r := &Registry{specs: map[string]Spec{}}
	r.Register(Spec{
		Name:         "ls",
		Column:       "power",
		DefaultLower: 0.05,
		DefaultUpper: 0.05,
		Validate: func(v float64) error {
			if v < 0 || v > 1 {
				return errors.ValidationError(fmt.Sprintf("Lomb-Scargle power must be between 0 and 1, got %g", v))
			}
			return nil
		},
	})
	r.Register(Spec{
		Name:         "t",
		Column:       "Tmag",
		DefaultLower: 0.5,
		DefaultUpper: 0.5,
	})
	r.Register(Spec{
		Name:         "snr",
		Column:       "snr",
		DefaultLower: 2.5,
		DefaultUpper: 2.5,
		Validate: func(v float64) error {
			if v <= 0 {
				return errors.ValidationError(fmt.Sprintf("SNR must be greater than 0, got %g", v))
			}
			return nil
		},
	})
	return r
}

// Register adds or replaces a parameter spec.
func (r *Registry) Register(s Spec) {
	r.specs[s.Name] = s
}

// Lookup returns the spec for a parameter name.
func (r *Registry) Lookup(name string) (Spec, error) {
	s, ok := r.specs[name]
	if !ok {
		return Spec{}, errors.ValidationError(fmt.Sprintf("unknown parameter %q (registered: %v)", name, r.Names()))
	}
	return s, nil
}

// Has reports whether a parameter name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// Names returns the registered parameter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Columns returns the catalog columns of all registered parameters, sorted by
// parameter name. Used by loaders to decide which columns to ingest.
func (r *Registry) Columns() []string {
	cols := make([]string, 0, len(r.specs))
	for _, name := range r.Names() {
		cols = append(cols, r.specs[name].Column)
	}
	return cols
}

// CheckValue enforces the parameter's value domain.
func (s Spec) CheckValue(v float64) error {
	if s.Validate == nil {
		return nil
	}
	return s.Validate(v)
}
