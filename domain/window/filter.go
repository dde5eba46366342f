// Package window implements the multi-parameter interval filter that both
// metrics are built on: keep a row only when every constrained column falls
// inside its tolerance window.
package window

import (
	"fmt"

	"periodqc/domain/catalog"
	"periodqc/internal/errors"
)

// Constraint restricts one catalog column to the inclusive interval
// [Center-Lower, Center+Upper]. Zero tolerances mean exact-match filtering.
type Constraint struct {
	Column string
	Center float64
	Lower  float64
	Upper  float64
}

// Validate rejects negative tolerances.
func (c Constraint) Validate() error {
	if c.Lower < 0 || c.Upper < 0 {
		return errors.InvalidConstraint(fmt.Sprintf("column %s: tolerances must be non-negative, got -%g/+%g", c.Column, c.Lower, c.Upper))
	}
	return nil
}

// Contains reports whether v lies inside the constraint interval.
func (c Constraint) Contains(v float64) bool {
	return v >= c.Center-c.Lower && v <= c.Center+c.Upper
}

// Filter returns the rows satisfying every constraint (logical AND). An empty
// constraint set returns all rows. A constraint naming a column outside the
// catalog schema, or carrying a negative tolerance, fails with an
// INVALID_CONSTRAINT error. Rows missing a value for a constrained column are
// excluded.
func Filter(cat *catalog.Catalog, constraints []Constraint) ([]catalog.Row, error) {
	for _, c := range constraints {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if !cat.HasColumn(c.Column) {
			return nil, errors.InvalidConstraint(fmt.Sprintf("column %s is not in the catalog schema", c.Column))
		}
	}

	if len(constraints) == 0 {
		out := make([]catalog.Row, len(cat.Rows))
		copy(out, cat.Rows)
		return out, nil
	}

	var out []catalog.Row
	for _, row := range cat.Rows {
		if rowInWindow(row, constraints) {
			out = append(out, row)
		}
	}
	return out, nil
}

func rowInWindow(row catalog.Row, constraints []Constraint) bool {
	for _, c := range constraints {
		v, ok := row.Value(c.Column)
		if !ok || !c.Contains(v) {
			return false
		}
	}
	return true
}
