package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gapdash_build_info",
		Help: "Build information of the dashboard",
	}, []string{"version"})

	DatasetRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gapdash_dataset_rows", Help: "Rows in the loaded dataset table.",
	})
	DatasetJoinMismatches = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gapdash_dataset_join_mismatches", Help: "Countries that did not match across the dataset sources.",
	}, []string{"side"})

	Recomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapdash_recomputes_total", Help: "Output recomputations by output and outcome.",
	}, []string{"output", "result"})
	RecomputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gapdash_recompute_duration_seconds",
		Help:    "Time spent recomputing one output.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"output"})
	ClearedInputs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapdash_cleared_inputs_total", Help: "Selections cleared because their options changed.",
	}, []string{"input"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gapdash_sessions_active", Help: "Dashboard sessions currently held in memory.",
	})
	SessionEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapdash_session_evictions_total", Help: "Sessions removed from memory by reason.",
	}, []string{"reason"})
	Visitors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapdash_visitors_total", Help: "New sessions by the visitor's continent.",
	}, []string{"continent"})
	WebsocketMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapdash_websocket_messages_total", Help: "Websocket frames by direction and type.",
	}, []string{"direction", "type"})

	RenderCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapdash_render_cache_total", Help: "Render cache lookups by result.",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapdash_http_requests_total", Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
)
