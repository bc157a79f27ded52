package filter

import (
	"slices"

	"github.com/sudorandom/gapdash/pkg/dataset"
)

// SubRegionsFor returns the sub-regions offered for region, in the order they
// first appear in the table. An empty region offers every sub-region.
func SubRegionsFor(t *dataset.Table, region string) []string {
	if region == "" {
		return t.SubRegions()
	}
	return distinct(t.Rows(), func(r *dataset.Row) string {
		if r.Region != region {
			return ""
		}
		return r.SubRegion
	})
}

// CountriesFor returns the countries offered for the region and sub-region
// controls. The sub-region takes precedence over the region.
func CountriesFor(t *dataset.Table, region, subRegion string) []string {
	var keep func(*dataset.Row) bool
	switch {
	case subRegion != "":
		keep = func(r *dataset.Row) bool { return r.SubRegion == subRegion }
	case region != "":
		keep = func(r *dataset.Row) bool { return r.Region == region }
	default:
		return t.Countries()
	}
	return distinct(t.Rows(), func(r *dataset.Row) string {
		if !keep(r) {
			return ""
		}
		return r.Country
	})
}

// Contains reports whether v is one of options. The empty value is always
// allowed since it means unset.
func Contains(options []string, v string) bool {
	return v == "" || slices.Contains(options, v)
}

func distinct(v dataset.View, key func(*dataset.Row) string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, r := range v.Rows() {
		k := key(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
