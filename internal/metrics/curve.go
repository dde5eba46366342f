package metrics

import (
	"fmt"

	"periodqc/internal/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric names which of the two calculations to run.
type Metric string

const (
	MetricReliability  Metric = "reliability"
	MetricCompleteness Metric = "completeness"
)

// ParseMetric validates a raw metric name.
func ParseMetric(raw string) (Metric, error) {
	switch Metric(raw) {
	case MetricReliability, MetricCompleteness:
		return Metric(raw), nil
	}
	return "", errors.ValidationError(fmt.Sprintf("metric must be reliability or completeness, got %q", raw))
}

// CurvePoint is one period sample of a metric curve. Populated is false when
// the window around Period contained no stars.
type CurvePoint struct {
	Period    float64
	Value     float64
	Populated bool
}

// Curve contains metric samples over an even period grid plus the mean of the
// populated samples.
type Curve struct {
	Metric Metric
	Mode   Mode
	Points []CurvePoint
	Mean   float64
}

// Curve evaluates the metric at n evenly spaced periods in [start, end],
// reusing the query's mode, tolerances, and parameter constraints at each
// grid point. Empty-population points are kept in the grid but marked
// unpopulated; every other error aborts.
func (c *Calculator) Curve(metric Metric, start, end float64, n int, q Query) (*Curve, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, errors.ValidationError(fmt.Sprintf("curve needs at least 2 grid points, got %d", n))
	}
	if start <= 0 || end <= start {
		return nil, errors.ValidationError(fmt.Sprintf("curve range must satisfy 0 < start < end, got [%g, %g]", start, end))
	}

	grid := floats.Span(make([]float64, n), start, end)
	curve := &Curve{Metric: metric, Mode: q.Mode, Points: make([]CurvePoint, 0, n)}
	var populated []float64

	for _, period := range grid {
		pq := q
		pq.Period = period

		var value float64
		var err error
		if metric == MetricReliability {
			value, err = c.Reliability(pq)
		} else {
			value, err = c.Completeness(pq)
		}
		if err != nil {
			if errors.HasCode(err, errors.CodeEmptyPopulation) {
				curve.Points = append(curve.Points, CurvePoint{Period: period})
				continue
			}
			return nil, err
		}

		curve.Points = append(curve.Points, CurvePoint{Period: period, Value: value, Populated: true})
		populated = append(populated, value)
	}

	if len(populated) > 0 {
		curve.Mean = stat.Mean(populated, nil)
	}
	return curve, nil
}
