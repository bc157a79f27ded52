// Package chart builds Vega-Lite specifications for the four dashboard panels.
// Builders are pure: the same view and parameters always produce the same
// document, and an empty view produces a valid chart with no data points.
package chart

import (
	"errors"
	"fmt"

	"github.com/sudorandom/gapdash/pkg/dataset"
)

var ErrUnknownMetric = errors.New("unknown metric")

// Metric is the user-selectable quantity shown on every panel.
type Metric string

const (
	LifeExpectancy Metric = "life_expectancy"
	ChildMortality Metric = "child_mortality"
	PopDensity     Metric = "pop_density"
)

var metricLabels = map[Metric]string{
	LifeExpectancy: "Life Expectancy",
	ChildMortality: "Child Mortality",
	PopDensity:     "Population Density",
}

// Metrics returns the selectable metrics in display order.
func Metrics() []Metric {
	return []Metric{LifeExpectancy, ChildMortality, PopDensity}
}

func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

func (m Metric) Valid() bool {
	_, ok := metricLabels[m]
	return ok
}

func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

func (m Metric) check() error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, string(m))
	}
	return nil
}

// value reads the metric from r. The metric must be valid.
func (m Metric) value(r *dataset.Row) float64 {
	v, _ := r.Field(string(m))
	return v
}
