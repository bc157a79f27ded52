package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"

	_ "embed"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sudorandom/gapdash/pkg/chart"
	"github.com/sudorandom/gapdash/pkg/dataset"
	"github.com/sudorandom/gapdash/pkg/filter"
	"github.com/sudorandom/gapdash/pkg/metrics"
	"github.com/sudorandom/gapdash/pkg/reactive"
	"github.com/sudorandom/gapdash/pkg/sources"
)

//go:embed web/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Choice is one entry of a select or radio control.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// InputsResponse describes every input control and its starting value.
type InputsResponse struct {
	Metrics   []Choice                  `json:"metrics"`
	Years     []int                     `json:"years"`
	Regions   []string                  `json:"regions"`
	RankModes []Choice                  `json:"rank_modes"`
	Defaults  map[reactive.Input]string `json:"defaults"`
}

type OptionsResponse struct {
	Region  string   `json:"region"`
	Options []string `json:"options"`
}

type Handler struct {
	log       *slog.Logger
	cfg       Config
	sessions  *Sessions
	newRC     func(map[reactive.Input]string) (*reactive.Controller, error)
	inputs    InputsResponse
	namespace string
}

func NewHandler(log *slog.Logger, cfg Config, sessions *Sessions, newRC func(map[reactive.Input]string) (*reactive.Controller, error)) (*Handler, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if sessions == nil || newRC == nil {
		return nil, errors.New("sessions and controller factory are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("handler config validation failed: %w", err)
	}

	rc, err := newRC(nil)
	if err != nil {
		return nil, fmt.Errorf("default inputs: %w", err)
	}
	inputs := InputsResponse{
		Years:    cfg.Dashboard.YearChoices(),
		Regions:  cfg.Table.Regions(),
		Defaults: rc.State().Values(),
	}
	for _, m := range chart.Metrics() {
		inputs.Metrics = append(inputs.Metrics, Choice{Value: string(m), Label: m.Label()})
	}
	inputs.RankModes = []Choice{{Value: string(chart.Top), Label: "Top 10"}, {Value: string(chart.Bottom), Label: "Bottom 10"}}

	return &Handler{
		log:       log,
		cfg:       cfg,
		sessions:  sessions,
		newRC:     newRC,
		inputs:    inputs,
		namespace: CacheNamespace(cfg.Table, cfg.Chart),
	}, nil
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.indexHandler)
	mux.HandleFunc("GET /ws", h.wsHandler)
	mux.HandleFunc("GET /api/inputs", h.inputsHandler)
	mux.HandleFunc("GET /api/options/sub_regions", h.subRegionsHandler)
	mux.HandleFunc("GET /api/outputs/{name}", h.outputHandler)
	mux.HandleFunc("GET /healthz", h.healthzHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}

func (h *Handler) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) indexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, map[string]any{
		"Inputs":     h.inputs,
		"Stylesheet": sources.StylesheetURL,
		"Vega":       sources.VegaURL,
		"VegaLite":   sources.VegaLiteURL,
		"VegaEmbed":  sources.VegaEmbedURL,
	})
	if err != nil {
		h.log.Error("failed to render index", "error", err)
	}
}

func (h *Handler) inputsHandler(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.inputs)
}

func (h *Handler) subRegionsHandler(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region != "" && !h.cfg.Table.HasRegion(region) {
		h.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown region %q", region))
		return
	}
	h.writeJSON(w, http.StatusOK, OptionsResponse{
		Region:  region,
		Options: filter.SubRegionsFor(h.cfg.Table, region),
	})
}

// outputHandler renders one output from query parameters without a session.
// Inputs missing from the query take their default; present but empty ones
// are unset.
func (h *Handler) outputHandler(w http.ResponseWriter, r *http.Request) {
	name := reactive.Output(r.PathValue("name"))
	query := r.URL.Query()
	format := query.Get("format")
	contentType, ok := formats[format]
	if !ok {
		h.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}
	if format == "html" && name.IsOptions() {
		h.writeJSONError(w, http.StatusBadRequest, "option outputs have no html form")
		return
	}

	values := make(map[reactive.Input]string)
	for _, in := range reactive.Inputs() {
		if query.Has(string(in)) {
			values[in] = query.Get(string(in))
		}
	}
	rc, err := h.newRC(values)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	render := func() ([]byte, error) {
		res, err := rc.Render(name)
		if err != nil {
			return nil, err
		}
		switch format {
		case "html":
			return chart.Render(res.Spec)
		case "proto":
			return marshalProto(res)
		}
		return json.Marshal(res)
	}

	body, hit, err := h.render(cacheKey(h.namespace, name, rc.State(), format), render)
	if errors.Is(err, reactive.ErrUnknownOutput) {
		h.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error("render failed", "output", name, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "render failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache", map[bool]string{true: "hit", false: "miss"}[hit])
	_, _ = w.Write(body)
}

func (h *Handler) render(key string, render func() ([]byte, error)) ([]byte, bool, error) {
	if h.cfg.Cache == nil {
		body, err := render()
		return body, false, err
	}
	body, hit, err := h.cfg.Cache.GetOrRender(key, render)
	if err == nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		metrics.RenderCache.WithLabelValues(result).Inc()
	}
	return body, hit, err
}

// CacheNamespace identifies the dataset and chart options renders are made
// from. Renders outside the current namespace can be pruned.
func CacheNamespace(t *dataset.Table, opts chart.Options) string {
	return t.Fingerprint() + "-" + opts.Fingerprint()
}

// cacheKey is namespaced so renders of a previous dataset or chart setup are
// never served. The state is normalised so equivalent queries share an entry.
func cacheKey(namespace string, o reactive.Output, s reactive.State, format string) string {
	q := url.Values{}
	for in, v := range s.Values() {
		q.Set(string(in), v)
	}
	if format == "" {
		format = "json"
	}
	q.Set("format", format)
	return namespace + "/" + string(o) + "?" + q.Encode()
}

var formats = map[string]string{
	"":      "application/json",
	"json":  "application/json",
	"html":  "text/html; charset=utf-8",
	"proto": "application/x-protobuf",
}

// marshalProto encodes a result as a google.protobuf.Struct with the same
// shape as its JSON form.
func marshalProto(res reactive.Result) ([]byte, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// instrument counts requests by route pattern and status code.
func instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
