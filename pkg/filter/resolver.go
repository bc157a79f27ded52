// Package filter narrows the dataset table to the rows the dashboard shows and
// derives the option lists of the dependent controls.
package filter

import "github.com/sudorandom/gapdash/pkg/dataset"

// Selection is the filter part of the dashboard inputs. Empty strings and a
// zero year mean unset.
type Selection struct {
	Region    string
	SubRegion string
	Country   string
	Year      int
}

// Level names the categorical filter that a selection resolves to.
type Level int

const (
	LevelNone Level = iota
	LevelRegion
	LevelSubRegion
	LevelCountry
)

func (l Level) String() string {
	switch l {
	case LevelRegion:
		return "region"
	case LevelSubRegion:
		return "sub_region"
	case LevelCountry:
		return "country"
	}
	return "none"
}

// Level returns the strongest categorical filter set on s. Country wins over
// sub-region, which wins over region.
func (s Selection) Level() Level {
	switch {
	case s.Country != "":
		return LevelCountry
	case s.SubRegion != "":
		return LevelSubRegion
	case s.Region != "":
		return LevelRegion
	}
	return LevelNone
}

// Effective drops the categorical fields that Resolve ignores, so two
// selections that resolve to the same view compare equal.
func (s Selection) Effective() Selection {
	switch s.Level() {
	case LevelCountry:
		return Selection{Country: s.Country, Year: s.Year}
	case LevelSubRegion:
		return Selection{SubRegion: s.SubRegion, Year: s.Year}
	case LevelRegion:
		return Selection{Region: s.Region, Year: s.Year}
	}
	return Selection{Year: s.Year}
}

// Resolve applies at most one categorical filter, chosen by precedence, and
// then the year filter. Matching is exact. The result may be empty.
func Resolve(t *dataset.Table, s Selection) dataset.View {
	v := t.Rows()
	switch s.Level() {
	case LevelCountry:
		v = v.Filter(func(r *dataset.Row) bool { return r.Country == s.Country })
	case LevelSubRegion:
		v = v.Filter(func(r *dataset.Row) bool { return r.SubRegion == s.SubRegion })
	case LevelRegion:
		v = v.Filter(func(r *dataset.Row) bool { return r.Region == s.Region })
	}
	if s.Year != 0 {
		v = v.Filter(func(r *dataset.Row) bool { return r.Year == s.Year })
	}
	return v
}
