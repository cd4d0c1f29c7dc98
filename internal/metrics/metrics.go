package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the bot's Prometheus instruments. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	dispatches    *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
	windowUsed    prometheus.Gauge
	pending       prometheus.Gauge
	signals       *prometheus.CounterVec
	aborts        *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		dispatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_dispatches_total",
				Help: "Requests dispatched by the governor",
			},
			[]string{"stage"},
		),
		fetchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_fetch_failures_total",
				Help: "Fetches that produced no data",
			},
			[]string{"stage", "reason"},
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairsentinel_fetch_duration_seconds",
				Help:    "Duration of data source calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"timeframe"},
		),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "pairsentinel_queue_depth",
			Help: "Requests waiting for the governor",
		}),
		windowUsed: f.NewGauge(prometheus.GaugeOpts{
			Name: "pairsentinel_rate_window_used",
			Help: "Dispatches inside the trailing rate window",
		}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "pairsentinel_pending_signals",
			Help: "Signals waiting for confirmation",
		}),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_signals_total",
				Help: "Signal outcomes",
			},
			[]string{"symbol", "kind", "direction"},
		),
		aborts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_pipeline_aborts_total",
				Help: "Analysis chains dropped before producing a result",
			},
			[]string{"stage", "reason"},
		),
	}
}

func (r *Recorder) Dispatch(stage string) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(stage).Inc()
}

func (r *Recorder) FetchFailure(stage, reason string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(stage, reason).Inc()
}

func (r *Recorder) FetchDuration(timeframe string, seconds float64) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(timeframe).Observe(seconds)
}

// Governor records queue depth and rate window usage.
func (r *Recorder) Governor(queueDepth, windowUsed int) {
	if r == nil {
		return
	}
	r.queueDepth.Set(float64(queueDepth))
	r.windowUsed.Set(float64(windowUsed))
}

func (r *Recorder) Pending(n int) {
	if r == nil {
		return
	}
	r.pending.Set(float64(n))
}

func (r *Recorder) Signal(symbol, kind, direction string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(symbol, kind, direction).Inc()
}

func (r *Recorder) Abort(stage, reason string) {
	if r == nil {
		return
	}
	r.aborts.WithLabelValues(stage, reason).Inc()
}
