// Package dataset holds the immutable country/year table behind the dashboard.
//
// A Table is built once at startup from two CSV sources (a metrics table keyed
// by country and year, and an identifier table keyed by country), outer-joined
// on the literal country name. Nulls are encoded with zero values: empty
// strings, NaN floats, a zero Year (identifier-only rows) and a zero ID (no
// ISO 3166-1 numeric code uses 0).
package dataset

import "math"

type Row struct {
	Country     string
	Region      string
	SubRegion   string
	IncomeGroup string
	Year        int

	LifeExpectancy float64
	ChildMortality float64
	PopDensity     float64
	Income         float64
	LogIncome      float64
	Population     float64

	ID int
}

// IsNull reports whether a float column value is missing.
func IsNull(v float64) bool {
	return math.IsNaN(v)
}

// Null is the missing float value.
func Null() float64 {
	return math.NaN()
}

func (r *Row) HasYear() bool { return r.Year != 0 }

func (r *Row) HasID() bool { return r.ID != 0 }

// Field returns a column value by its CSV name. ok is false for unknown
// columns and for string columns.
func (r *Row) Field(name string) (v float64, ok bool) {
	switch name {
	case "life_expectancy":
		return r.LifeExpectancy, true
	case "child_mortality":
		return r.ChildMortality, true
	case "pop_density":
		return r.PopDensity, true
	case "income":
		return r.Income, true
	case "log_income":
		return r.LogIncome, true
	case "population":
		return r.Population, true
	}
	return 0, false
}

// logIncome is derived once at load time.
func logIncome(income float64) float64 {
	if IsNull(income) || income <= 0 {
		return Null()
	}
	return math.Log(income)
}
