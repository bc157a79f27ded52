package chart

import (
	"fmt"

	"github.com/sudorandom/gapdash/pkg/dataset"
)

// WorldMap colours each country of the base geometry by the metric. Rows are
// joined to shapes on the numeric country id, so rows without an id are left
// out. A selected region with a configured projection zooms the map.
func WorldMap(v dataset.View, m Metric, year int, region string, o Options) (*Spec, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	values := make([]Datum, 0, v.Len())
	for _, r := range v.Rows() {
		if !r.HasID() {
			continue
		}
		values = append(values, Datum{
			"id":      r.ID,
			"country": r.Country,
			string(m): num(m.value(r)),
		})
	}

	s := newSpec(mapTitle(m, year), o)
	s.Data = o.geometry().data()
	s.Transform = []Transform{{
		Lookup: "id",
		From: &LookupFrom{
			Data:   Data{Values: values},
			Key:    "id",
			Fields: []string{"country", string(m)},
		},
	}}
	s.Projection = worldProjection()
	if p, ok := o.Projections[region]; ok && region != "" {
		s.Projection = NewMercator(o.Width, o.Height, p).Spec()
	}
	s.Mark = Mark{Type: "geoshape", Stroke: "black", StrokeWidth: 0.5}
	s.Encoding = &Encoding{
		Color: &Channel{Field: string(m), Type: Quantitative, Title: m.Label()},
		Tooltip: []Channel{
			{Field: "country", Type: Nominal, Title: "Country"},
			{Field: string(m), Type: Quantitative, Title: m.Label()},
		},
	}
	return s, nil
}

// LookupValues returns the metric rows joined onto the map geometry.
func (s *Spec) LookupValues() []Datum {
	for _, t := range s.Transform {
		if t.From != nil {
			rows, _ := t.From.Data.Values.([]Datum)
			return rows
		}
	}
	return nil
}

func mapTitle(m Metric, year int) string {
	if year == 0 {
		return fmt.Sprintf("%s by country", m.Label())
	}
	return fmt.Sprintf("%s by country for year %d", m.Label(), year)
}
