package chart

import (
	"fmt"
	"io"
	"strconv"

	geojson "github.com/paulmach/go.geojson"

	"github.com/sudorandom/gapdash/pkg/sources"
)

// Geometry is the base layer of the world map: either the remote TopoJSON
// world or a GeoJSON feature collection loaded at startup.
type Geometry struct {
	url      string
	features *geojson.FeatureCollection
}

// RemoteWorld references the 110m world TopoJSON; the browser fetches it.
func RemoteWorld() *Geometry {
	return &Geometry{url: sources.WorldTopoJSONURL}
}

// LoadGeometry reads a GeoJSON feature collection. Each feature's id is
// normalised to an ISO 3166-1 numeric code taken from the feature id, an
// "iso_n3" or "id" property, or failing that a lookup of the "name" property.
// Features that resolve to no code keep a zero id and never match a row.
func LoadGeometry(r io.Reader) (*Geometry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	for _, f := range fc.Features {
		f.ID = featureID(f)
	}
	return &Geometry{features: fc}, nil
}

// Features returns the number of inline features, zero for remote geometry.
func (g *Geometry) Features() int {
	if g.features == nil {
		return 0
	}
	return len(g.features.Features)
}

// IDs returns the numeric id of every inline feature in file order.
func (g *Geometry) IDs() []int {
	if g.features == nil {
		return nil
	}
	ids := make([]int, 0, len(g.features.Features))
	for _, f := range g.features.Features {
		id, _ := f.ID.(int)
		ids = append(ids, id)
	}
	return ids
}

func (g *Geometry) data() *Data {
	if g.features == nil {
		return &Data{URL: g.url, Format: &Format{Type: "topojson", Feature: sources.WorldFeature}}
	}
	return &Data{Values: g.features, Format: &Format{Type: "json", Property: "features"}}
}

func featureID(f *geojson.Feature) int {
	if id, ok := toID(f.ID); ok {
		return id
	}
	for _, key := range []string{"iso_n3", "ISO_N3", "id"} {
		if id, ok := toID(f.Properties[key]); ok {
			return id
		}
	}
	for _, key := range []string{"name", "NAME", "admin", "ADMIN"} {
		if name, ok := f.Properties[key].(string); ok {
			if id, ok := sources.NumericID(name); ok {
				return id
			}
		}
	}
	return 0
}

func toID(v any) (int, bool) {
	switch v := v.(type) {
	case float64:
		if v > 0 && v == float64(int(v)) {
			return int(v), true
		}
	case int:
		return v, v > 0
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
