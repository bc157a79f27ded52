package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sudorandom/gapdash/pkg/utils"
)

var ErrMalformed = errors.New("malformed dataset")

const (
	colCountry        = "country"
	colYear           = "year"
	colID             = "id"
	colRegion         = "region"
	colSubRegion      = "sub_region"
	colIncomeGroup    = "income_group"
	colLifeExpectancy = "life_expectancy"
	colChildMortality = "child_mortality"
	colPopDensity     = "pop_density"
	colIncome         = "income"
	colPopulation     = "population"
)

// LoadSources opens both sources (local paths or http(s) URLs) and loads the
// table. Remote sources are cached under cacheDir when it is not empty.
func LoadSources(log *slog.Logger, metricsSrc, idsSrc, cacheDir string) (*Table, error) {
	m, err := utils.OpenSource(log, metricsSrc, cacheDir, "[metrics]")
	if err != nil {
		return nil, fmt.Errorf("open metrics source: %w", err)
	}
	defer m.Close()

	ids, err := utils.OpenSource(log, idsSrc, cacheDir, "[ids]")
	if err != nil {
		return nil, fmt.Errorf("open identifier source: %w", err)
	}
	defer ids.Close()

	return Load(m, ids)
}

// Load reads the metrics and identifier CSVs, joins them on the country name
// and derives log income.
func Load(metrics, ids io.Reader) (*Table, error) {
	metricsRaw, err := io.ReadAll(metrics)
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	idsRaw, err := io.ReadAll(ids)
	if err != nil {
		return nil, fmt.Errorf("read identifiers: %w", err)
	}

	idRecs, err := readCSV(idsRaw, colCountry, colID)
	if err != nil {
		return nil, fmt.Errorf("identifiers: %w", err)
	}
	metricRecs, err := readCSV(metricsRaw, colCountry, colYear)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var report JoinReport
	idByCountry := make(map[string]int, len(idRecs.records))
	var idOrder []string
	for i, rec := range idRecs.records {
		country := idRecs.get(rec, colCountry)
		id, err := parseInt(idRecs.get(rec, colID))
		if err != nil {
			return nil, fmt.Errorf("%w: identifiers line %d: id: %v", ErrMalformed, i+2, err)
		}
		if _, dup := idByCountry[country]; dup {
			report.DuplicateIDNames = append(report.DuplicateIDNames, country)
			continue
		}
		idByCountry[country] = id
		idOrder = append(idOrder, country)
	}

	rows := make([]Row, 0, len(metricRecs.records)+len(idOrder))
	matched := make(map[string]bool, len(idOrder))
	missing := make(map[string]bool)
	for i, rec := range metricRecs.records {
		row, err := metricRecs.row(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: metrics line %d: %v", ErrMalformed, i+2, err)
		}
		if id, ok := idByCountry[row.Country]; ok {
			row.ID = id
			matched[row.Country] = true
		} else if !missing[row.Country] {
			missing[row.Country] = true
			report.MetricsOnly = append(report.MetricsOnly, row.Country)
		}
		rows = append(rows, row)
	}

	// Outer join: identifier rows without metrics are kept with null fields.
	for _, country := range idOrder {
		if matched[country] {
			continue
		}
		report.IdentifiersOnly = append(report.IdentifiersOnly, country)
		rows = append(rows, Row{
			Country:        country,
			ID:             idByCountry[country],
			LifeExpectancy: Null(),
			ChildMortality: Null(),
			PopDensity:     Null(),
			Income:         Null(),
			LogIncome:      Null(),
			Population:     Null(),
		})
	}

	return newTable(rows, fingerprint(metricsRaw, idsRaw), report), nil
}

func fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

type csvTable struct {
	index   map[string]int
	records [][]string
}

func readCSV(raw []byte, required ...string) (*csvTable, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	t := &csvTable{index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.index[name] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrMalformed, col)
		}
	}
	t.records, err = r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return t, nil
}

func (t *csvTable) get(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func (t *csvTable) row(rec []string) (Row, error) {
	row := Row{
		Country:     t.get(rec, colCountry),
		Region:      t.get(rec, colRegion),
		SubRegion:   t.get(rec, colSubRegion),
		IncomeGroup: t.get(rec, colIncomeGroup),
	}
	year, err := parseInt(t.get(rec, colYear))
	if err != nil {
		return Row{}, fmt.Errorf("year: %v", err)
	}
	if year == 0 {
		return Row{}, errors.New("year: missing")
	}
	row.Year = year

	floats := []struct {
		col string
		dst *float64
	}{
		{colLifeExpectancy, &row.LifeExpectancy},
		{colChildMortality, &row.ChildMortality},
		{colPopDensity, &row.PopDensity},
		{colIncome, &row.Income},
		{colPopulation, &row.Population},
	}
	for _, f := range floats {
		v, err := parseFloat(t.get(rec, f.col))
		if err != nil {
			return Row{}, fmt.Errorf("%s: %v", f.col, err)
		}
		*f.dst = v
	}
	row.LogIncome = logIncome(row.Income)
	return row, nil
}

func isNA(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return true
	}
	return false
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if isNA(s) {
		return Null(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt accepts integral floats ("2012.0") since joined exports often
// carry them; missing values parse as 0.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if isNA(s) {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
