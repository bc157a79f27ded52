// Package datasettest provides a small fixture table for tests.
//
// The fixture has 17 countries that join cleanly, each with rows for 2012 and
// 2015, plus:
//   - "Kosovo" (2015 only) with no region, sub-region, income group or
//     identifier, and an income of 0 so its log income is null;
//   - "Cote d'Ivoire", spelled "Côte d'Ivoire" in the identifier table, so it
//     fails to join on both sides;
//   - "Greenland", present only in the identifier table.
package datasettest

import (
	"strings"
	"testing"

	"github.com/sudorandom/gapdash/pkg/dataset"
)

const MetricsCSV = `country,year,population,region,sub_region,income_group,life_expectancy,income,child_mortality,pop_density
Yemen,2012,25000000,Asia,Western Asia,Low,66.2,3840,50.1,47.3
Turkey,2012,75200000,Asia,Western Asia,Upper middle,77.0,22200,14.5,97.7
Saudi Arabia,2012,28800000,Asia,Western Asia,High,74.6,50300,15.8,13.4
China,2012,1380000000,Asia,Eastern Asia,Upper middle,75.8,11400,13.8,147.1
Japan,2012,128000000,Asia,Eastern Asia,High,83.6,36800,2.9,350.7
India,2012,1270000000,Asia,Southern Asia,Lower middle,67.7,5010,52.0,428.0
France,2012,64300000,Europe,Western Europe,High,82.0,38600,4.1,117.3
Germany,2012,81900000,Europe,Western Europe,High,80.7,44000,3.9,234.2
Sweden,2012,9520000,Europe,Northern Europe,High,81.8,44600,2.8,23.2
Norway,2012,5020000,Europe,Northern Europe,High,81.5,63500,2.8,13.7
Italy,2012,60500000,Europe,Southern Europe,High,82.4,35100,3.7,205.5
Kenya,2012,44300000,Africa,Eastern Africa,Lower middle,62.1,2740,57.4,77.8
Ethiopia,2012,92700000,Africa,Eastern Africa,Low,63.0,1270,69.0,92.7
Egypt,2012,86400000,Africa,Northern Africa,Lower middle,70.6,10700,25.3,86.8
Brazil,2012,201000000,Americas,South America,Upper middle,74.3,15400,16.3,24.0
Canada,2012,34800000,Americas,Northern America,High,81.6,43400,5.2,3.8
Australia,2012,22700000,Oceania,Australia and New Zealand,High,82.3,43600,4.0,3.0
Cote d'Ivoire,2012,21100000,Africa,Western Africa,Lower middle,57.6,3260,96.8,66.4
Yemen,2015,26900000,Asia,Western Asia,Low,66.0,2620,55.8,50.9
Turkey,2015,78300000,Asia,Western Asia,Upper middle,77.9,24000,13.5,101.7
Saudi Arabia,2015,31700000,Asia,Western Asia,High,74.8,50700,14.5,14.7
China,2015,1400000000,Asia,Eastern Asia,Upper middle,76.4,13600,10.7,148.8
Japan,2015,127000000,Asia,Eastern Asia,High,83.8,37800,2.7,349.2
India,2015,1310000000,Asia,Southern Asia,Lower middle,68.9,5900,47.7,440.6
France,2015,64500000,Europe,Western Europe,High,82.2,39600,4.0,117.9
Germany,2015,81700000,Europe,Western Europe,High,81.0,45600,3.7,234.4
Sweden,2015,9760000,Europe,Northern Europe,High,82.1,46700,2.9,23.8
Norway,2015,5200000,Europe,Northern Europe,High,81.9,64300,2.6,14.2
Italy,2015,60600000,Europe,Southern Europe,High,82.6,34900,3.4,206.0
Kenya,2015,47900000,Africa,Eastern Africa,Lower middle,63.4,2900,49.4,84.2
Ethiopia,2015,100000000,Africa,Eastern Africa,Low,64.8,1530,59.2,100.1
Egypt,2015,92400000,Africa,Northern Africa,Lower middle,71.1,10600,22.8,92.8
Brazil,2015,206000000,Americas,South America,Upper middle,75.0,15100,14.3,24.6
Canada,2015,35900000,Americas,Northern America,High,81.7,43900,4.9,3.9
Australia,2015,23800000,Oceania,Australia and New Zealand,High,82.5,44100,3.8,3.1
Cote d'Ivoire,2015,23200000,Africa,Western Africa,Lower middle,58.9,3440,91.5,73.1
Kosovo,2015,1800000,,,,71.5,0,,
`

const IDsCSV = `country,id
Yemen,887
Turkey,792
Saudi Arabia,682
China,156
Japan,392
India,356
France,250
Germany,276
Sweden,752
Norway,578
Italy,380
Kenya,404
Ethiopia,231
Egypt,818
Brazil,76
Canada,124
Australia,36
Côte d'Ivoire,384
Greenland,304
`

// Rows in the fixture table: 37 metric rows plus 2 identifier-only rows.
const Rows = 39

// Table loads the fixture table.
func Table(tb testing.TB) *dataset.Table {
	tb.Helper()
	t, err := dataset.Load(strings.NewReader(MetricsCSV), strings.NewReader(IDsCSV))
	if err != nil {
		tb.Fatalf("load fixture: %v", err)
	}
	return t
}

// Countries returns the distinct country names of a view in order.
func Countries(v dataset.View) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range v.Rows() {
		if !seen[r.Country] {
			seen[r.Country] = true
			out = append(out, r.Country)
		}
	}
	return out
}
