package chart

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Options carry the presentation settings shared by every builder.
type Options struct {
	Width  int
	Height int

	// Projections zoom the map when a region is selected. Regions without an
	// entry fall back to the whole-world projection.
	Projections map[string]RegionProjection

	// Geometry is the world map base layer.
	Geometry *Geometry

	// FontSize sets the box plot axis, title and legend fonts. Zero keeps the
	// renderer defaults.
	FontSize float64
}

func DefaultOptions() Options {
	return Options{
		Width:       600,
		Height:      400,
		Projections: DefaultRegionProjections(),
		Geometry:    RemoteWorld(),
		FontSize:    14,
	}
}

func (o Options) geometry() *Geometry {
	if o.Geometry == nil {
		return RemoteWorld()
	}
	return o.Geometry
}

// Fingerprint identifies everything in o that changes a rendered chart. The
// map geometry is included, inline features and all.
func (o Options) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d/%d/%g\n", o.Width, o.Height, o.FontSize)
	enc := json.NewEncoder(h)
	_ = enc.Encode(o.Projections)
	_ = enc.Encode(o.geometry().data())
	return hex.EncodeToString(h.Sum(nil)[:8])
}
