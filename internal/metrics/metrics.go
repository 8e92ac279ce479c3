package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the decision engine.
type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec // labels: signal
	DecisionDur       prometheus.Histogram
	FilterBlocksTotal prometheus.Counter
	CandlesIngested   *prometheus.CounterVec // labels: timeframe
	CandlesRejected   prometheus.Counter
	FillsApplied      prometheus.Counter
	PositionsClosed   prometheus.Counter
	StopUpdatesTotal  prometheus.Counter
	KillSwitchTrips   prometheus.Counter
	CooldownBlocks    prometheus.Counter
	PammScore         prometheus.Gauge
	DailyRealizedUSD  prometheus.Gauge
	WSClients         prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ninja_decisions_total",
			Help: "Poll decisions emitted, by signal",
		}, []string{"signal"}),
		DecisionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ninja_decision_duration_seconds",
			Help:    "Frame load + indicator + filter chain latency per poll",
			Buckets: prometheus.DefBuckets,
		}),
		FilterBlocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ninja_filter_blocks_total",
			Help: "Entry evaluations blocked by the filter chain",
		}),
		CandlesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ninja_candles_ingested_total",
			Help: "Candles accepted by the ingest endpoint, by timeframe",
		}, []string{"timeframe"}),
		CandlesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ninja_candles_rejected_total",
			Help: "Candle rows dropped during ingest normalization",
		}),
		FillsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ninja_fills_applied_total",
			Help: "Execution reports applied to position state",
		}),
		PositionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ninja_positions_closed_total",
			Help: "Positions closed with realized P&L settled",
		}),
		StopUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ninja_stop_updates_total",
			Help: "Trailing-ladder stop tightens",
		}),
		KillSwitchTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ninja_kill_switch_trips_total",
			Help: "Kill switch activations (auto or catastrophic)",
		}),
		CooldownBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ninja_cooldown_blocks_total",
			Help: "Entry evaluations skipped during post-stop cooldown",
		}),
		PammScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ninja_pamm_score",
			Help: "PAMM score from the most recent decision",
		}),
		DailyRealizedUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ninja_daily_realized_usd",
			Help: "Realized P&L for the current UTC day",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ninja_ws_clients",
			Help: "Connected decision-stream WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.DecisionsTotal,
		m.DecisionDur,
		m.FilterBlocksTotal,
		m.CandlesIngested,
		m.CandlesRejected,
		m.FillsApplied,
		m.PositionsClosed,
		m.StopUpdatesTotal,
		m.KillSwitchTrips,
		m.CooldownBlocks,
		m.PammScore,
		m.DailyRealizedUSD,
		m.WSClients,
	)

	return m
}

// Handler returns the /metrics scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
