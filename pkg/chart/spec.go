package chart

import (
	"encoding/json"
	"math"
)

const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// Spec is a Vega-Lite document. Only the parts the dashboard uses are modelled.
type Spec struct {
	Schema     string      `json:"$schema"`
	Title      string      `json:"title,omitempty"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	Data       *Data       `json:"data,omitempty"`
	Transform  []Transform `json:"transform,omitempty"`
	Projection *Projection `json:"projection,omitempty"`
	Mark       Mark        `json:"mark"`
	Encoding   *Encoding   `json:"encoding,omitempty"`
	Config     *Config     `json:"config,omitempty"`
}

// Data is either a URL with a format or inline values. Inline values always
// marshal as an array, so an empty view still yields "values": [].
type Data struct {
	URL    string
	Values any
	Format *Format
}

func (d Data) MarshalJSON() ([]byte, error) {
	type out struct {
		URL    string  `json:"url,omitempty"`
		Values any     `json:"values,omitempty"`
		Format *Format `json:"format,omitempty"`
	}
	if d.URL != "" {
		return json.Marshal(out{URL: d.URL, Format: d.Format})
	}
	values := d.Values
	if rows, ok := values.([]Datum); values == nil || (ok && rows == nil) {
		values = []Datum{}
	}
	return json.Marshal(struct {
		Values any     `json:"values"`
		Format *Format `json:"format,omitempty"`
	}{values, d.Format})
}

type Format struct {
	Type     string `json:"type,omitempty"`
	Feature  string `json:"feature,omitempty"`
	Property string `json:"property,omitempty"`
}

// Datum is one inline data record. Nulls are stored as nil.
type Datum map[string]any

// num converts a dataset float into a JSON value. encoding/json rejects NaN.
func num(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type Transform struct {
	Lookup string      `json:"lookup,omitempty"`
	From   *LookupFrom `json:"from,omitempty"`
	Filter string      `json:"filter,omitempty"`
}

type LookupFrom struct {
	Data   Data     `json:"data"`
	Key    string   `json:"key"`
	Fields []string `json:"fields"`
}

type Projection struct {
	Type      string    `json:"type"`
	Scale     float64   `json:"scale,omitempty"`
	Translate []float64 `json:"translate,omitempty"`
	Center    []float64 `json:"center,omitempty"`
}

type Mark struct {
	Type        string  `json:"type"`
	Tooltip     bool    `json:"tooltip,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	Extent      string  `json:"extent,omitempty"`
}

type Encoding struct {
	X       *Channel  `json:"x,omitempty"`
	Y       *Channel  `json:"y,omitempty"`
	Color   *Channel  `json:"color,omitempty"`
	Size    *Channel  `json:"size,omitempty"`
	Tooltip []Channel `json:"tooltip,omitempty"`
}

type Channel struct {
	Field string `json:"field,omitempty"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
	// Sort is "ascending", "descending" or an encoding channel such as "-x".
	Sort   string  `json:"sort,omitempty"`
	Scale  *Scale  `json:"scale,omitempty"`
	Legend *Legend `json:"legend,omitempty"`
	Format string  `json:"format,omitempty"`
}

type Scale struct {
	Zero   *bool     `json:"zero,omitempty"`
	Range  []float64 `json:"range,omitempty"`
	Scheme string    `json:"scheme,omitempty"`
}

type Legend struct {
	Orient string `json:"orient,omitempty"`
}

type Config struct {
	Axis   *TextConfig `json:"axis,omitempty"`
	Title  *TextConfig `json:"title,omitempty"`
	Legend *TextConfig `json:"legend,omitempty"`
	View   *ViewConfig `json:"view,omitempty"`
}

type TextConfig struct {
	LabelFontSize float64 `json:"labelFontSize,omitempty"`
	TitleFontSize float64 `json:"titleFontSize,omitempty"`
	FontSize      float64 `json:"fontSize,omitempty"`
}

type ViewConfig struct {
	Stroke string `json:"stroke,omitempty"`
}

const (
	Quantitative = "quantitative"
	Nominal      = "nominal"
	Ordinal      = "ordinal"
)

func newSpec(title string, o Options) *Spec {
	return &Spec{
		Schema: SchemaURL,
		Title:  title,
		Width:  o.Width,
		Height: o.Height,
	}
}

// Values returns the inline data records of s, or nil when the data comes
// from a URL.
func (s *Spec) Values() []Datum {
	if s.Data == nil {
		return nil
	}
	rows, _ := s.Data.Values.([]Datum)
	return rows
}

func boolPtr(b bool) *bool { return &b }
