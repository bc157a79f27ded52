package chart

import (
	"bytes"
	"encoding/json"
	"html/template"

	"github.com/sudorandom/gapdash/pkg/sources"
)

var embedTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Vega}}"></script>
<script src="{{.VegaLite}}"></script>
<script src="{{.VegaEmbed}}"></script>
</head>
<body>
<div id="vis"></div>
<script>vegaEmbed("#vis", {{.Spec}}, {"actions": false});</script>
</body>
</html>
`))

// Render returns a standalone HTML page that draws s with vega-embed. It is
// meant for iframes and for saving a panel.
func Render(s *Spec) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = embedTemplate.Execute(&buf, struct {
		Title                     string
		Vega, VegaLite, VegaEmbed string
		Spec                      template.JS
	}{
		Title:     s.Title,
		Vega:      sources.VegaURL,
		VegaLite:  sources.VegaLiteURL,
		VegaEmbed: sources.VegaEmbedURL,
		Spec:      template.JS(raw),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
