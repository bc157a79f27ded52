package chart

import "math"

// maxLat keeps Mercator away from the poles where y diverges.
const maxLat = 89.5

// RegionProjection zooms the world map onto one region. Center is
// [longitude, latitude] in degrees; Scale is in d3 projection units.
type RegionProjection struct {
	Center [2]float64 `yaml:"center" json:"center"`
	Scale  float64    `yaml:"scale" json:"scale"`
}

// DefaultRegionProjections cover the five regions of the gapminder data.
func DefaultRegionProjections() map[string]RegionProjection {
	return map[string]RegionProjection{
		"Africa":   {Center: [2]float64{20, 2}, Scale: 350},
		"Americas": {Center: [2]float64{-80, 10}, Scale: 200},
		"Asia":     {Center: [2]float64{90, 30}, Scale: 300},
		"Europe":   {Center: [2]float64{15, 52}, Scale: 600},
		"Oceania":  {Center: [2]float64{150, -20}, Scale: 400},
	}
}

// Mercator places the region center in the middle of a width x height map.
type Mercator struct {
	width, height float64
	scale         float64
	tx, ty        float64
}

func NewMercator(width, height int, p RegionProjection) *Mercator {
	m := &Mercator{width: float64(width), height: float64(height), scale: p.Scale}
	x, y := mercatorRaw(p.Center[1], p.Center[0])
	m.tx = m.width/2 - m.scale*x
	m.ty = m.height/2 + m.scale*y
	return m
}

// Translate returns the d3 translate pair for the projection.
func (m *Mercator) Translate() []float64 {
	return []float64{m.tx, m.ty}
}

// Project maps a coordinate to pixels the same way the renderer does.
func (m *Mercator) Project(lat, lng float64) (x, y float64) {
	rx, ry := mercatorRaw(lat, lng)
	return m.tx + m.scale*rx, m.ty - m.scale*ry
}

func (m *Mercator) Spec() *Projection {
	return &Projection{Type: "mercator", Scale: m.scale, Translate: m.Translate()}
}

func mercatorRaw(lat, lng float64) (x, y float64) {
	if lat > maxLat {
		lat = maxLat
	}
	if lat < -maxLat {
		lat = -maxLat
	}
	latRad, lngRad := lat*math.Pi/180, lng*math.Pi/180
	return lngRad, math.Log(math.Tan(math.Pi/4 + latRad/2))
}

// worldProjection is used when no region is selected.
func worldProjection() *Projection {
	return &Projection{Type: "equalEarth"}
}
