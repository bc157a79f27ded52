package chart

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sudorandom/gapdash/pkg/dataset"
)

var ErrUnknownRankMode = errors.New("unknown rank mode")

// RankMode picks which end of the ranking the bar chart shows.
type RankMode string

const (
	Top    RankMode = "top"
	Bottom RankMode = "bottom"
)

// MaxRank is exclusive: ranks 1 through 9 are kept.
const MaxRank = 10

func RankModes() []RankMode { return []RankMode{Top, Bottom} }

// ParseRankMode accepts "top" and "bottom"; the empty string means top.
func ParseRankMode(s string) (RankMode, error) {
	switch RankMode(s) {
	case "", Top:
		return Top, nil
	case Bottom:
		return Bottom, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRankMode, s)
}

func (r RankMode) title() string {
	if r == Bottom {
		return "Bottom 10 Countries"
	}
	return "Top 10 Countries"
}

// Ranked is a row with its competition rank: rows with equal values share a
// rank and the next distinct value skips ahead (1, 2, 2, 4).
type Ranked struct {
	Row   *dataset.Row
	Value float64
	Rank  int
}

// Rank orders the rows with a non-null metric, largest first in top mode and
// smallest first in bottom mode, and keeps those ranked below MaxRank. Ties
// keep table order.
func Rank(v dataset.View, m Metric, mode RankMode) ([]Ranked, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if mode != Top && mode != Bottom {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRankMode, string(mode))
	}

	ranked := make([]Ranked, 0, v.Len())
	for _, r := range v.Rows() {
		val := m.value(r)
		if dataset.IsNull(val) {
			continue
		}
		ranked = append(ranked, Ranked{Row: r, Value: val})
	}
	better := func(a, b float64) bool {
		if mode == Bottom {
			return a < b
		}
		return a > b
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return better(ranked[i].Value, ranked[j].Value)
	})

	out := make([]Ranked, 0, MaxRank)
	for i := range ranked {
		rank := i + 1
		if i > 0 && ranked[i].Value == ranked[i-1].Value {
			rank = out[len(out)-1].Rank
		}
		if rank >= MaxRank {
			break
		}
		ranked[i].Rank = rank
		out = append(out, ranked[i])
	}
	return out, nil
}

// Ranking draws the ranked countries as horizontal bars.
func Ranking(v dataset.View, m Metric, mode RankMode, o Options) (*Spec, error) {
	ranked, err := Rank(v, m, mode)
	if err != nil {
		return nil, err
	}

	values := make([]Datum, 0, len(ranked))
	for _, r := range ranked {
		values = append(values, Datum{
			"country": r.Row.Country,
			"year":    r.Row.Year,
			"rank":    r.Rank,
			string(m): r.Value,
		})
	}

	s := newSpec(mode.title(), o)
	s.Data = &Data{Values: values}
	s.Mark = Mark{Type: "bar", Tooltip: true}
	s.Encoding = &Encoding{
		X:     &Channel{Field: string(m), Type: Quantitative, Title: m.Label()},
		Y:     &Channel{Field: "country", Type: Nominal, Title: "Country", Sort: "-x"},
		Color: &Channel{Field: string(m), Type: Quantitative, Title: m.Label()},
	}
	return s, nil
}
