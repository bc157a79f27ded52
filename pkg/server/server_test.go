package server

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sudorandom/gapdash/pkg/chart"
	"github.com/sudorandom/gapdash/pkg/config"
	"github.com/sudorandom/gapdash/pkg/dataset/datasettest"
	"github.com/sudorandom/gapdash/pkg/reactive"
	"github.com/sudorandom/gapdash/pkg/sources"
	"github.com/sudorandom/gapdash/pkg/utils"
)

var logger *slog.Logger

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Verbose() {
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, cache *utils.RenderCache) *httptest.Server {
	t.Helper()
	srv, err := New(logger, Config{
		Table:     datasettest.Table(t),
		Dashboard: config.Default(),
		Cache:     cache,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type resultBody struct {
	Output  string   `json:"output"`
	Options []string `json:"options"`
	Spec    *struct {
		Title string `json:"title"`
		Data  struct {
			Values []map[string]any `json:"values"`
		} `json:"data"`
	} `json:"spec"`
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)

	_, err = New(logger, Config{Dashboard: config.Default()})
	assert.ErrorContains(t, err, "table is required")

	_, err = New(logger, Config{Table: datasettest.Table(t)})
	assert.ErrorContains(t, err, "dashboard config is required")
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page := string(body)
	assert.Contains(t, page, "Gapminder Dashboard")
	assert.Contains(t, page, sources.VegaEmbedURL)
	assert.Contains(t, page, `value="child_mortality"`)
	assert.Contains(t, page, `<option value="Europe">Europe</option>`)

	resp, _ = get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestInputs(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/api/inputs")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got InputsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.Metrics, 3)
	assert.Equal(t, []int{1990, 2000, 2012, 2015}, got.Years)
	assert.ElementsMatch(t, []string{"Africa", "Americas", "Asia", "Europe", "Oceania"}, got.Regions)
	assert.Len(t, got.RankModes, 2)
	assert.Equal(t, "2012", got.Defaults[reactive.InputYear])
	assert.Equal(t, "life_expectancy", got.Defaults[reactive.InputMetric])
	assert.Equal(t, "top", got.Defaults[reactive.InputRankMode])
	assert.Equal(t, "", got.Defaults[reactive.InputRegion])
}

func TestSubRegions(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/api/options/sub_regions?region=Europe")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got OptionsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{"Western Europe", "Northern Europe", "Southern Europe"}, got.Options)

	resp, _ = get(t, ts.URL+"/api/options/sub_regions?region=Atlantis")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOutputs(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, r resultBody)
	}{
		{
			name:       "ranking for a region",
			path:       "/api/outputs/bar_chart?region=Europe&year=2015",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, r resultBody) {
				require.NotNil(t, r.Spec)
				assert.Len(t, r.Spec.Data.Values, 5)
			},
		},
		{
			name:       "single country",
			path:       "/api/outputs/bar_chart?country=Japan&year=2015",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, r resultBody) {
				require.NotNil(t, r.Spec)
				require.Len(t, r.Spec.Data.Values, 1)
				assert.Equal(t, "Japan", r.Spec.Data.Values[0]["country"])
			},
		},
		{
			name:       "sub-region options",
			path:       "/api/outputs/sub_region_options?region=Africa",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, r resultBody) {
				assert.Equal(t, []string{"Eastern Africa", "Northern Africa", "Western Africa"}, r.Options)
			},
		},
		{
			name:       "empty year shows every year",
			path:       "/api/outputs/bar_chart?region=Oceania&year=",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, r resultBody) {
				require.NotNil(t, r.Spec)
				assert.Len(t, r.Spec.Data.Values, 2)
			},
		},
		{name: "unknown output", path: "/api/outputs/pie_chart", wantStatus: http.StatusNotFound},
		{name: "year not offered", path: "/api/outputs/map?year=1999", wantStatus: http.StatusBadRequest},
		{name: "unknown metric", path: "/api/outputs/map?metric=gdp", wantStatus: http.StatusBadRequest},
		{name: "unknown region", path: "/api/outputs/map?region=Atlantis", wantStatus: http.StatusBadRequest},
		{name: "country outside region", path: "/api/outputs/map?region=Asia&country=Sweden", wantStatus: http.StatusBadRequest},
		{name: "unknown format", path: "/api/outputs/map?format=xml", wantStatus: http.StatusBadRequest},
		{name: "html options", path: "/api/outputs/country_options?format=html", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			require.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			if tt.wantStatus != http.StatusOK {
				var e ErrorResponse
				require.NoError(t, json.Unmarshal(body, &e))
				assert.NotEmpty(t, e.Error)
				assert.Equal(t, tt.wantStatus, e.Code)
				return
			}
			var r resultBody
			require.NoError(t, json.Unmarshal(body, &r))
			tt.check(t, r)
		})
	}
}

func TestOutputHTML(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/api/outputs/bubble_chart?year=2015&format=html")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "vegaEmbed(")
	assert.Contains(t, string(body), "Income (Log Scale)")
}

func TestOutputProto(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/api/outputs/bar_chart?region=Europe&year=2015&format=proto")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-protobuf", resp.Header.Get("Content-Type"))

	var s structpb.Struct
	require.NoError(t, proto.Unmarshal(body, &s))
	assert.Equal(t, "bar_chart", s.GetFields()["output"].GetStringValue())
	data := s.GetFields()["spec"].GetStructValue().GetFields()["data"].GetStructValue()
	assert.Len(t, data.GetFields()["values"].GetListValue().GetValues(), 5)
}

func TestVisitorLocatorNil(t *testing.T) {
	var l *VisitorLocator
	assert.Equal(t, "", l.Continent("192.0.2.1:5555"))
	assert.NoError(t, l.Close())
}

func TestOutputCache(t *testing.T) {
	cache, err := utils.OpenRenderCache("", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	ts := newTestServer(t, cache)

	resp, first := get(t, ts.URL+"/api/outputs/box_plot?year=2015&region=Asia")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))

	// Same state, different query order.
	resp, second := get(t, ts.URL+"/api/outputs/box_plot?region=Asia&year=2015")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))
	assert.Equal(t, first, second)

	resp, _ = get(t, ts.URL+"/api/outputs/box_plot?year=2015&region=Asia&format=html")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))
}

func TestOutputCacheFollowsChartOptions(t *testing.T) {
	cache, err := utils.OpenRenderCache("", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	width := func(t *testing.T, w int) int {
		t.Helper()
		opts := chart.DefaultOptions()
		opts.Width = w
		srv, err := New(logger, Config{
			Table:     datasettest.Table(t),
			Dashboard: config.Default(),
			Chart:     opts,
			Cache:     cache,
		})
		require.NoError(t, err)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		resp, body := get(t, ts.URL+"/api/outputs/bar_chart?year=2015")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var res struct {
			Spec struct {
				Width int `json:"width"`
			} `json:"spec"`
		}
		require.NoError(t, json.Unmarshal(body, &res))
		return res.Spec.Width
	}

	assert.Equal(t, 600, width(t, 600))
	// A restart with other chart options must not serve the old renders.
	assert.Equal(t, 900, width(t, 900))
}

func TestCacheNamespace(t *testing.T) {
	tbl := datasettest.Table(t)
	base := chart.DefaultOptions()
	ns := CacheNamespace(tbl, base)
	assert.True(t, strings.HasPrefix(ns, tbl.Fingerprint()))
	assert.Equal(t, ns, CacheNamespace(tbl, chart.DefaultOptions()))

	font := chart.DefaultOptions()
	font.FontSize = 20
	assert.NotEqual(t, ns, CacheNamespace(tbl, font))

	proj := chart.DefaultOptions()
	proj.Projections = map[string]chart.RegionProjection{"Europe": {Center: [2]float64{10, 50}, Scale: 500}}
	assert.NotEqual(t, ns, CacheNamespace(tbl, proj))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	get(t, ts.URL+"/healthz")

	resp, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "gapdash_http_requests_total")
}

func dial(t *testing.T, ts *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if session != "" {
		url += "?session=" + session
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, inputs map[string]string) ServerMessage {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "set", Inputs: inputs}))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketSession(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := dial(t, ts, "")

	var hello ServerMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	require.NotEmpty(t, hello.Session)
	assert.Len(t, hello.Results, len(reactive.Outputs()))
	assert.Equal(t, "2012", hello.Values[reactive.InputYear])

	msg := roundTrip(t, conn, map[string]string{"region": "Europe"})
	assert.Equal(t, "update", msg.Type)
	assert.Equal(t, []reactive.Input{reactive.InputRegion}, msg.Changed)
	assert.Empty(t, msg.Cleared)
	assert.Equal(t, "Europe", msg.Values[reactive.InputRegion])

	msg = roundTrip(t, conn, map[string]string{"sub_region": "Northern Europe", "country": "Sweden"})
	assert.Equal(t, "update", msg.Type)
	assert.Equal(t, "Sweden", msg.Values[reactive.InputCountry])

	msg = roundTrip(t, conn, map[string]string{"region": "Asia"})
	assert.Equal(t, "update", msg.Type)
	assert.Equal(t, []reactive.Input{reactive.InputSubRegion, reactive.InputCountry}, msg.Cleared)
	assert.Equal(t, "", msg.Values[reactive.InputSubRegion])
	assert.Equal(t, "", msg.Values[reactive.InputCountry])

	msg = roundTrip(t, conn, map[string]string{"year": "1800"})
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "invalid input")
	assert.Equal(t, "Asia", msg.Values[reactive.InputRegion])

	for _, typ := range []string{"reset", "x-made-up-type"} {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: typ}))
		var bad ServerMessage
		require.NoError(t, conn.ReadJSON(&bad))
		assert.Equal(t, "error", bad.Type)
	}

	// Client supplied types are folded into a single label.
	_, body := get(t, ts.URL+"/metrics")
	assert.Contains(t, string(body), `gapdash_websocket_messages_total{direction="in",type="unknown"}`)
	assert.Contains(t, string(body), `gapdash_websocket_messages_total{direction="in",type="set"}`)
	assert.NotContains(t, string(body), `type="reset"`)
	assert.NotContains(t, string(body), `type="x-made-up-type"`)

	// A second connection with the id picks up the same state.
	again := dial(t, ts, hello.Session)
	var resumed ServerMessage
	require.NoError(t, again.ReadJSON(&resumed))
	assert.Equal(t, hello.Session, resumed.Session)
	assert.Equal(t, "Asia", resumed.Values[reactive.InputRegion])

	// An unknown id starts over at the defaults.
	fresh := dial(t, ts, "does-not-exist")
	var started ServerMessage
	require.NoError(t, fresh.ReadJSON(&started))
	assert.NotEqual(t, "does-not-exist", started.Session)
	assert.Equal(t, "", started.Values[reactive.InputRegion])
}
