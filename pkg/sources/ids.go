package sources

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/biter777/countries"
)

// NumericID returns the ISO 3166-1 numeric code for a country name.
func NumericID(name string) (int, bool) {
	c := countries.ByName(name)
	if c == countries.Unknown || !c.IsValid() {
		return 0, false
	}
	return int(c), true
}

// DerivedID is one line of a derived identifier table.
type DerivedID struct {
	Country string
	ID      int
	Alpha3  string
}

// DeriveIDs looks up every name and returns the matches in input order along
// with the names that could not be resolved.
func DeriveIDs(names []string) (found []DerivedID, unresolved []string) {
	for _, name := range names {
		id, ok := NumericID(name)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		found = append(found, DerivedID{Country: name, ID: id, Alpha3: countries.ByNumeric(id).Alpha3()})
	}
	return found, unresolved
}

// WriteIDs writes ids in the country,id layout the dataset loader reads.
func WriteIDs(w io.Writer, ids []DerivedID) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"country", "id"}); err != nil {
		return err
	}
	for _, d := range ids {
		if err := cw.Write([]string{d.Country, fmt.Sprint(d.ID)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
