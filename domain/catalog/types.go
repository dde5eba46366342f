// Package catalog defines the star catalog types: one row per measured star,
// carrying the reference rotation period, the pipeline-measured period, the
// detection status, and any quality parameters recorded for the measurement.
package catalog

import (
	"fmt"

	"periodqc/internal/errors"
)

// Well-known catalog columns. Quality parameter columns (power, Tmag, snr,
// and anything else the registry declares) are carried per-row in Params.
const (
	ColTruePeriod     = "Prot"
	ColMeasuredPeriod = "prot_tess"
	ColStatus         = "status"
)

// Status classifies a detection against the reference period.
// The enumeration is closed: parsing rejects anything else, which makes
// "status != not_recovered" and "status is match or alias" provably the same
// predicate.
type Status string

const (
	StatusMatch        Status = "match"
	StatusAlias        Status = "alias"
	StatusNotRecovered Status = "not_recovered"
)

// ParseStatus validates a raw status value from an input source.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusMatch, StatusAlias, StatusNotRecovered:
		return Status(raw), nil
	}
	return "", errors.ValidationError(fmt.Sprintf("unrecognized status %q (expected match, alias, or not_recovered)", raw))
}

// Recovered reports whether any valid detection was made.
func (s Status) Recovered() bool {
	return s != StatusNotRecovered
}

// Row is a single star measurement. Rows are read-only once loaded; the
// calculator never mutates them.
type Row struct {
	Star           string
	TruePeriod     float64
	MeasuredPeriod float64
	Status         Status
	Params         map[string]float64
}

// Value returns the named column's value for this row. The second return is
// false when the row has no value for that column.
func (r Row) Value(column string) (float64, bool) {
	switch column {
	case ColTruePeriod:
		return r.TruePeriod, true
	case ColMeasuredPeriod:
		return r.MeasuredPeriod, true
	}
	v, ok := r.Params[column]
	return v, ok
}

// Validate checks the row invariants that must hold before it can take part
// in any ratio computation.
func (r Row) Validate() error {
	if r.TruePeriod <= 0 {
		return errors.ValidationError(fmt.Sprintf("star %s: true period must be positive, got %g", r.Star, r.TruePeriod))
	}
	if r.MeasuredPeriod <= 0 {
		return errors.ValidationError(fmt.Sprintf("star %s: measured period must be positive, got %g", r.Star, r.MeasuredPeriod))
	}
	if _, err := ParseStatus(string(r.Status)); err != nil {
		return errors.Wrapf(err, "star %s", r.Star)
	}
	return nil
}

// Catalog is an ordered, immutable collection of rows plus the column schema
// observed at load time. The schema lets the window filter distinguish "column
// does not exist" (caller error) from "row has no value" (row excluded).
type Catalog struct {
	Rows    []Row
	columns map[string]struct{}
}

// New builds a catalog over rows with the given column schema. The period and
// status columns are always part of the schema.
func New(rows []Row, paramColumns []string) *Catalog {
	cols := map[string]struct{}{
		ColTruePeriod:     {},
		ColMeasuredPeriod: {},
		ColStatus:         {},
	}
	for _, c := range paramColumns {
		cols[c] = struct{}{}
	}
	return &Catalog{Rows: rows, columns: cols}
}

// HasColumn reports whether the column is part of the catalog schema.
func (c *Catalog) HasColumn(name string) bool {
	_, ok := c.columns[name]
	return ok
}

// Len returns the number of rows.
func (c *Catalog) Len() int {
	return len(c.Rows)
}
