package chart

import (
	"fmt"

	"github.com/sudorandom/gapdash/pkg/dataset"
)

// BoxPlot shows the metric distribution per income group. Rows without an
// income group or without the metric are dropped.
func BoxPlot(v dataset.View, m Metric, year int, o Options) (*Spec, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	values := make([]Datum, 0, v.Len())
	for _, r := range v.Rows() {
		val := m.value(r)
		if r.IncomeGroup == "" || dataset.IsNull(val) {
			continue
		}
		values = append(values, Datum{
			"country":      r.Country,
			"income_group": r.IncomeGroup,
			string(m):      val,
		})
	}

	s := newSpec(boxTitle(m, year), o)
	s.Data = &Data{Values: values}
	s.Mark = Mark{Type: "boxplot", Extent: "min-max"}
	s.Encoding = &Encoding{
		X:     &Channel{Field: "income_group", Type: Nominal, Title: "Income Group", Sort: "descending"},
		Y:     &Channel{Field: string(m), Type: Quantitative, Title: m.Label()},
		Color: &Channel{Field: "income_group", Type: Nominal, Title: "Income Group", Sort: "descending"},
	}
	if o.FontSize > 0 {
		s.Config = &Config{
			Axis:   &TextConfig{LabelFontSize: o.FontSize, TitleFontSize: o.FontSize},
			Title:  &TextConfig{FontSize: o.FontSize + 4},
			Legend: &TextConfig{LabelFontSize: o.FontSize, TitleFontSize: o.FontSize},
		}
	}
	return s, nil
}

func boxTitle(m Metric, year int) string {
	if year == 0 {
		return fmt.Sprintf("%s group by Income Group", m.Label())
	}
	return fmt.Sprintf("%s group by Income Group for year %d", m.Label(), year)
}
