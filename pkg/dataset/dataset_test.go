package dataset_test

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/sudorandom/gapdash/pkg/dataset"
	"github.com/sudorandom/gapdash/pkg/dataset/datasettest"
)

func TestLoadFixture(t *testing.T) {
	tbl := datasettest.Table(t)

	if tbl.Len() != datasettest.Rows {
		t.Errorf("expected %d rows, got %d", datasettest.Rows, tbl.Len())
	}
	if got, want := tbl.Regions(), []string{"Asia", "Europe", "Africa", "Americas", "Oceania"}; !slices.Equal(got, want) {
		t.Errorf("regions: expected %v, got %v", want, got)
	}
	if got, want := tbl.Years(), []int{2012, 2015}; !slices.Equal(got, want) {
		t.Errorf("years: expected %v, got %v", want, got)
	}
	if got := len(tbl.Countries()); got != 21 {
		t.Errorf("expected 21 countries, got %d", got)
	}
	if !tbl.HasSubRegion("Northern Europe") || tbl.HasSubRegion("northern europe") {
		t.Errorf("sub-region lookup must be exact")
	}
	if tbl.Fingerprint() == "" {
		t.Errorf("expected a fingerprint")
	}
}

func TestJoinReport(t *testing.T) {
	rep := datasettest.Table(t).JoinReport()

	if want := []string{"Cote d'Ivoire", "Kosovo"}; !slices.Equal(rep.MetricsOnly, want) {
		t.Errorf("metrics only: expected %v, got %v", want, rep.MetricsOnly)
	}
	if want := []string{"Côte d'Ivoire", "Greenland"}; !slices.Equal(rep.IdentifiersOnly, want) {
		t.Errorf("identifiers only: expected %v, got %v", want, rep.IdentifiersOnly)
	}
	if rep.Clean() {
		t.Errorf("expected an unclean report")
	}
}

func TestOuterJoinRows(t *testing.T) {
	tbl := datasettest.Table(t)

	byKey := map[string]*dataset.Row{}
	for _, r := range tbl.Rows().Rows() {
		byKey[r.Country+"/"+strconv.Itoa(r.Year)] = r
	}

	tests := []struct {
		key     string
		id      int
		hasYear bool
		nullLE  bool
	}{
		{"Japan/2015", 392, true, false},
		{"Cote d'Ivoire/2015", 0, true, false},
		{"Kosovo/2015", 0, true, false},
		{"Greenland/0", 304, false, true},
		{"Côte d'Ivoire/0", 384, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			r, ok := byKey[tt.key]
			if !ok {
				t.Fatalf("row %s not found", tt.key)
			}
			if r.ID != tt.id {
				t.Errorf("expected id %d, got %d", tt.id, r.ID)
			}
			if r.HasID() != (tt.id != 0) {
				t.Errorf("HasID mismatch")
			}
			if r.HasYear() != tt.hasYear {
				t.Errorf("expected HasYear %v", tt.hasYear)
			}
			if dataset.IsNull(r.LifeExpectancy) != tt.nullLE {
				t.Errorf("expected null life expectancy %v, got %v", tt.nullLE, r.LifeExpectancy)
			}
		})
	}

	// Identifier-only rows come last, in identifier file order.
	rows := tbl.Rows().Rows()
	if got := rows[len(rows)-2].Country; got != "Côte d'Ivoire" {
		t.Errorf("expected Côte d'Ivoire second to last, got %q", got)
	}
	if got := rows[len(rows)-1].Country; got != "Greenland" {
		t.Errorf("expected Greenland last, got %q", got)
	}
}

func TestLogIncome(t *testing.T) {
	metrics := "country,year,income\nA,2000,148.4131591025766\nB,2000,0\nC,2000,\nD,2000,-3\n"
	ids := "country,id\nA,1\n"
	tbl, err := dataset.Load(strings.NewReader(metrics), strings.NewReader(ids))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rows := tbl.Rows().Rows()

	if got := rows[0].LogIncome; math.Abs(got-5) > 1e-9 {
		t.Errorf("expected log income 5, got %v", got)
	}
	for _, r := range rows[1:] {
		if !dataset.IsNull(r.LogIncome) {
			t.Errorf("%s: expected null log income, got %v", r.Country, r.LogIncome)
		}
	}
	if v, ok := rows[0].Field("log_income"); !ok || math.Abs(v-5) > 1e-9 {
		t.Errorf("Field(log_income) = %v, %v", v, ok)
	}
	if _, ok := rows[0].Field("country"); ok {
		t.Errorf("Field(country) must not be numeric")
	}
}

func TestViewFilterDoesNotMutate(t *testing.T) {
	tbl := datasettest.Table(t)
	all := tbl.Rows()

	europe := all.Filter(func(r *dataset.Row) bool { return r.Region == "Europe" })
	if europe.Len() != 10 {
		t.Errorf("expected 10 european rows, got %d", europe.Len())
	}
	none := europe.Filter(func(r *dataset.Row) bool { return r.Region == "Asia" })
	if !none.Empty() {
		t.Errorf("expected an empty view")
	}
	if all.Len() != datasettest.Rows || tbl.Rows().Len() != datasettest.Rows {
		t.Errorf("filtering changed the source view")
	}

	regions := tbl.Regions()
	regions[0] = "changed"
	if tbl.Regions()[0] != "Asia" {
		t.Errorf("Regions must return a copy")
	}
}

func TestLoadMalformed(t *testing.T) {
	okIDs := "country,id\nA,1\n"
	tests := []struct {
		name    string
		metrics string
		ids     string
	}{
		{"empty metrics", "", okIDs},
		{"missing year column", "country,income\nA,1\n", okIDs},
		{"missing id column", "country,year\nA,2000\n", "country\nA\n"},
		{"bad year", "country,year\nA,twenty\n", okIDs},
		{"missing year", "country,year\nA,\n", okIDs},
		{"fractional year", "country,year\nA,2000.5\n", okIDs},
		{"bad metric", "country,year,income\nA,2000,lots\n", okIDs},
		{"bad id", "country,year\nA,2000\n", "country,id\nA,x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dataset.Load(strings.NewReader(tt.metrics), strings.NewReader(tt.ids))
			if !errors.Is(err, dataset.ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestLoadTolerantCells(t *testing.T) {
	metrics := "\ufeffcountry,year,life_expectancy,population\nA,2000.0,NA,\nB,2001,70.5,1e6\n"
	ids := "country,id\nA,4\nA,8\n"
	tbl, err := dataset.Load(strings.NewReader(metrics), strings.NewReader(ids))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rows := tbl.Rows().Rows()
	if rows[0].Year != 2000 {
		t.Errorf("expected year 2000, got %d", rows[0].Year)
	}
	if !dataset.IsNull(rows[0].LifeExpectancy) || !dataset.IsNull(rows[0].Population) {
		t.Errorf("expected nulls for NA and empty cells")
	}
	if rows[0].ID != 4 {
		t.Errorf("expected the first duplicate id to win, got %d", rows[0].ID)
	}
	if rows[1].Population != 1e6 {
		t.Errorf("expected population 1e6, got %v", rows[1].Population)
	}
	if want := []string{"A"}; !slices.Equal(tbl.JoinReport().DuplicateIDNames, want) {
		t.Errorf("duplicates: expected %v, got %v", want, tbl.JoinReport().DuplicateIDNames)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := datasettest.Table(t).Fingerprint()
	b := datasettest.Table(t).Fingerprint()
	if a != b {
		t.Errorf("fingerprint not stable: %s != %s", a, b)
	}
	other, err := dataset.Load(strings.NewReader("country,year\nA,2000\n"), strings.NewReader("country,id\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if other.Fingerprint() == a {
		t.Errorf("different sources produced the same fingerprint")
	}
}
