package sources

import (
	"bytes"
	"testing"
)

func TestNumericID(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"Japan", 392, true},
		{"France", 250, true},
		{"Brazil", 76, true},
		{"Atlantis", 0, false},
	}
	for _, tt := range tests {
		got, ok := NumericID(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NumericID(%q) = (%d, %v); want (%d, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDeriveAndWriteIDs(t *testing.T) {
	found, unresolved := DeriveIDs([]string{"Japan", "Atlantis", "Canada"})
	if len(found) != 2 || found[0].Alpha3 != "JPN" || found[1].ID != 124 {
		t.Fatalf("unexpected ids: %+v", found)
	}
	if len(unresolved) != 1 || unresolved[0] != "Atlantis" {
		t.Errorf("expected Atlantis unresolved, got %v", unresolved)
	}

	var buf bytes.Buffer
	if err := WriteIDs(&buf, found); err != nil {
		t.Fatalf("WriteIDs: %v", err)
	}
	if want := "country,id\nJapan,392\nCanada,124\n"; buf.String() != want {
		t.Errorf("WriteIDs wrote %q; want %q", buf.String(), want)
	}
}
