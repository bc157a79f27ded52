package dataset

import "slices"

// Table is read-only after Load and safe for concurrent use.
type Table struct {
	rows []Row
	all  View

	regions     []string
	subRegions  []string
	countries   []string
	years       []int
	fingerprint string
	report      JoinReport
}

// JoinReport lists countries that did not match across the two sources. The
// join is exact, so spelling differences end up here.
type JoinReport struct {
	MetricsOnly      []string
	IdentifiersOnly  []string
	DuplicateIDNames []string
}

func (j JoinReport) Clean() bool {
	return len(j.MetricsOnly) == 0 && len(j.IdentifiersOnly) == 0 && len(j.DuplicateIDNames) == 0
}

func newTable(rows []Row, fingerprint string, report JoinReport) *Table {
	t := &Table{rows: rows, fingerprint: fingerprint, report: report}

	ptrs := make([]*Row, len(t.rows))
	for i := range t.rows {
		ptrs[i] = &t.rows[i]
	}
	t.all = View{rows: ptrs}

	seenRegion := map[string]bool{}
	seenSub := map[string]bool{}
	seenCountry := map[string]bool{}
	seenYear := map[int]bool{}
	for i := range t.rows {
		r := &t.rows[i]
		if r.Region != "" && !seenRegion[r.Region] {
			seenRegion[r.Region] = true
			t.regions = append(t.regions, r.Region)
		}
		if r.SubRegion != "" && !seenSub[r.SubRegion] {
			seenSub[r.SubRegion] = true
			t.subRegions = append(t.subRegions, r.SubRegion)
		}
		if r.Country != "" && !seenCountry[r.Country] {
			seenCountry[r.Country] = true
			t.countries = append(t.countries, r.Country)
		}
		if r.HasYear() && !seenYear[r.Year] {
			seenYear[r.Year] = true
			t.years = append(t.years, r.Year)
		}
	}
	slices.Sort(t.years)
	return t
}

// Rows returns a view over the whole table.
func (t *Table) Rows() View { return t.all }

func (t *Table) Len() int { return len(t.rows) }

// Regions returns the distinct non-null regions in first occurrence order.
func (t *Table) Regions() []string { return slices.Clone(t.regions) }

// SubRegions returns the distinct non-null sub-regions in first occurrence order.
func (t *Table) SubRegions() []string { return slices.Clone(t.subRegions) }

func (t *Table) Countries() []string { return slices.Clone(t.countries) }

// Years returns the distinct years present in the data, ascending.
func (t *Table) Years() []int { return slices.Clone(t.years) }

func (t *Table) HasRegion(region string) bool { return slices.Contains(t.regions, region) }

func (t *Table) HasSubRegion(subRegion string) bool { return slices.Contains(t.subRegions, subRegion) }

func (t *Table) HasCountry(country string) bool { return slices.Contains(t.countries, country) }

// Fingerprint identifies the loaded source bytes.
func (t *Table) Fingerprint() string { return t.fingerprint }

func (t *Table) JoinReport() JoinReport { return t.report }

// View is a filtered, read-only subset of a Table. The rows point into the
// table and must not be modified.
type View struct {
	rows []*Row
}

func (v View) Len() int { return len(v.rows) }

func (v View) Empty() bool { return len(v.rows) == 0 }

// Rows returns the rows of the view in table order.
func (v View) Rows() []*Row { return v.rows }

// Filter returns a new view with the rows for which keep returns true.
func (v View) Filter(keep func(*Row) bool) View {
	out := make([]*Row, 0, len(v.rows))
	for _, r := range v.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return View{rows: out}
}
