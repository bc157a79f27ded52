package chart

import (
	"fmt"

	"github.com/sudorandom/gapdash/pkg/dataset"
	"github.com/sudorandom/gapdash/pkg/filter"
)

// BubbleColor returns the field that colours the bubbles for a selection.
// Drilling down makes the grouping finer: regions without a filter,
// sub-regions inside a region, countries inside a sub-region or for a single
// country.
func BubbleColor(sel filter.Selection) string {
	switch sel.Level() {
	case filter.LevelRegion:
		return "sub_region"
	case filter.LevelSubRegion, filter.LevelCountry:
		return "country"
	}
	return "region"
}

// Bubble plots log income against the metric, sized by population. Rows
// missing either axis are dropped.
func Bubble(v dataset.View, m Metric, sel filter.Selection, o Options) (*Spec, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	values := make([]Datum, 0, v.Len())
	for _, r := range v.Rows() {
		val := m.value(r)
		if dataset.IsNull(val) || dataset.IsNull(r.LogIncome) {
			continue
		}
		values = append(values, Datum{
			"country":    r.Country,
			"region":     str(r.Region),
			"sub_region": str(r.SubRegion),
			"year":       r.Year,
			"log_income": r.LogIncome,
			"population": num(r.Population),
			string(m):    val,
		})
	}

	color := BubbleColor(sel)
	s := newSpec(fmt.Sprintf("Income vs. %s", m.Label()), o)
	s.Data = &Data{Values: values}
	s.Mark = Mark{Type: "circle", Opacity: 0.7}
	s.Encoding = &Encoding{
		X:     &Channel{Field: "log_income", Type: Quantitative, Title: "Income (Log Scale)", Scale: &Scale{Zero: boolPtr(false)}},
		Y:     &Channel{Field: string(m), Type: Quantitative, Title: m.Label(), Scale: &Scale{Zero: boolPtr(false)}},
		Size:  &Channel{Field: "population", Type: Quantitative, Title: "Population", Scale: &Scale{Range: []float64{10, 1000}}},
		Color: &Channel{Field: color, Type: Nominal, Title: colorTitle(color)},
		Tooltip: []Channel{
			{Field: "country", Type: Nominal, Title: "Country"},
			{Field: string(m), Type: Quantitative, Title: m.Label()},
			{Field: "population", Type: Quantitative, Title: "Population", Format: ","},
		},
	}
	return s, nil
}

func colorTitle(field string) string {
	switch field {
	case "sub_region":
		return "Sub Region"
	case "country":
		return "Country"
	}
	return "Continent"
}
