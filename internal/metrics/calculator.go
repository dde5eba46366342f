// Package metrics computes reliability and completeness of rotation-period
// measurements over a star catalog. Both metrics window the catalog on a
// period column plus any supplied quality parameters and take the proportion
// of the windowed population whose detection status satisfies the requested
// mode. Reliability windows on the measured period (what the pipeline
// detected); completeness windows on the true period (what should have been
// detected).
package metrics

import (
	"fmt"

	"periodqc/domain/catalog"
	"periodqc/domain/window"
	"periodqc/internal/errors"
	"periodqc/internal/params"
)

// Mode selects which detection statuses count toward the numerator.
type Mode string

const (
	ModeMatch    Mode = "match"
	ModeAlias    Mode = "alias"
	ModeRecovery Mode = "recovery"
)

// ParseMode validates a raw mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeMatch, ModeAlias, ModeRecovery:
		return Mode(raw), nil
	}
	return "", errors.ValidationError(fmt.Sprintf("mode must be one of match, alias, or recovery, got %q", raw))
}

// Matches reports whether a row status counts under this mode.
func (m Mode) Matches(s catalog.Status) bool {
	switch m {
	case ModeMatch:
		return s == catalog.StatusMatch
	case ModeAlias:
		return s == catalog.StatusAlias
	default: // ModeRecovery
		return s.Recovered()
	}
}

// ParamValue is one quality-parameter constraint for a query. Lower/Upper are
// per-call tolerance overrides; nil falls back to the registry defaults.
type ParamValue struct {
	Name  string
	Value float64
	Lower *float64
	Upper *float64
}

// Query describes one metric evaluation: the anchor period, its tolerance
// window, the status mode, and the parameter constraints.
type Query struct {
	Period      float64
	PeriodLower float64
	PeriodUpper float64
	Mode        Mode
	Params      []ParamValue
}

// Calculator evaluates reliability and completeness over a fixed catalog.
// It holds no mutable state; calls are pure and safe to run concurrently.
type Calculator struct {
	catalog  *catalog.Catalog
	registry *params.Registry
}

// New creates a calculator over the given catalog and parameter registry.
func New(cat *catalog.Catalog, registry *params.Registry) *Calculator {
	return &Calculator{catalog: cat, registry: registry}
}

// Reliability is the proportion of stars detected near q.Period (and inside
// the parameter windows) whose status satisfies q.Mode: of everything the
// pipeline reported in this regime, how much can be trusted.
func (c *Calculator) Reliability(q Query) (float64, error) {
	return c.ratio(catalog.ColMeasuredPeriod, q)
}

// Completeness is the proportion of stars whose true period lies near
// q.Period (and inside the parameter windows) whose status satisfies q.Mode:
// of everything that should have been detected in this regime, how much was.
func (c *Calculator) Completeness(q Query) (float64, error) {
	return c.ratio(catalog.ColTruePeriod, q)
}

// ratio windows the catalog on anchorColumn and the parameter constraints,
// then counts mode-satisfying rows over the windowed population.
func (c *Calculator) ratio(anchorColumn string, q Query) (float64, error) {
	constraints, err := c.buildConstraints(anchorColumn, q)
	if err != nil {
		return 0, err
	}

	population, err := window.Filter(c.catalog, constraints)
	if err != nil {
		return 0, err
	}
	if len(population) == 0 {
		return 0, errors.EmptyPopulation(fmt.Sprintf("no stars fall within the window around period %g", q.Period))
	}

	matched := 0
	for _, row := range population {
		if q.Mode.Matches(row.Status) {
			matched++
		}
	}
	return float64(matched) / float64(len(population)), nil
}

func (c *Calculator) buildConstraints(anchorColumn string, q Query) ([]window.Constraint, error) {
	if q.Period <= 0 {
		return nil, errors.ValidationError(fmt.Sprintf("period must be positive, got %g", q.Period))
	}
	if _, err := ParseMode(string(q.Mode)); err != nil {
		return nil, err
	}
	if q.PeriodLower < 0 || q.PeriodUpper < 0 {
		return nil, errors.InvalidConstraint(fmt.Sprintf("period tolerances must be non-negative, got -%g/+%g", q.PeriodLower, q.PeriodUpper))
	}

	constraints := []window.Constraint{{
		Column: anchorColumn,
		Center: q.Period,
		Lower:  q.PeriodLower,
		Upper:  q.PeriodUpper,
	}}

	for _, p := range q.Params {
		spec, err := c.registry.Lookup(p.Name)
		if err != nil {
			return nil, err
		}
		if err := spec.CheckValue(p.Value); err != nil {
			return nil, err
		}
		lower, upper := spec.DefaultLower, spec.DefaultUpper
		if p.Lower != nil {
			lower = *p.Lower
		}
		if p.Upper != nil {
			upper = *p.Upper
		}
		constraints = append(constraints, window.Constraint{
			Column: spec.Column,
			Center: p.Value,
			Lower:  lower,
			Upper:  upper,
		})
	}

	return constraints, nil
}
