package sources

const (
	// WorldTopoJSONURL is the Natural Earth 110m world used by the map panel.
	// Country ids are ISO 3166-1 numeric codes.
	WorldTopoJSONURL = "https://cdn.jsdelivr.net/npm/vega-datasets@2/data/world-110m.json"
	WorldFeature     = "countries"

	VegaURL      = "https://cdn.jsdelivr.net/npm/vega@5"
	VegaLiteURL  = "https://cdn.jsdelivr.net/npm/vega-lite@5"
	VegaEmbedURL = "https://cdn.jsdelivr.net/npm/vega-embed@6"

	StylesheetURL = "https://codepen.io/chriddyp/pen/bWLwgP.css"

	DefaultMetricsPath = "data/gapminder.csv"
	DefaultIDsPath     = "data/country_ids.csv"
)
