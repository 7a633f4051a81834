package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal    *prometheus.CounterVec
	suppressedTotal *prometheus.CounterVec
	heatScore       *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapeheat_signals_total",
				Help: "Total number of signals fired by detector type",
			},
			[]string{"type", "severity"},
		),
		suppressedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapeheat_suppressed_total",
				Help: "Total number of suppressed or dropped detections",
			},
			[]string{"scope"},
		),
		heatScore: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tapeheat_heat_score",
				Help:    "Heat score distribution per routing channel",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"channel"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapeheat_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tapeheat_last_price",
				Help: "Last recorded price for a ticker",
			},
			[]string{"ticker"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tapeheat_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal counts one fired signal.
func (r *Recorder) RecordSignal(signalType, severity string) {
	r.signalsTotal.WithLabelValues(signalType, severity).Inc()
}

// RecordSuppressed counts a suppressed or dropped detection.
func (r *Recorder) RecordSuppressed(scope string) {
	r.suppressedTotal.WithLabelValues(scope).Inc()
}

// RecordHeatScore observes a computed heat score. An empty channel label
// means the signal was discarded.
func (r *Recorder) RecordHeatScore(channel string, score int) {
	if channel == "" {
		channel = "discarded"
	}
	r.heatScore.WithLabelValues(channel).Observe(float64(score))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a ticker.
func (r *Recorder) RecordLastPrice(ticker string, price float64) {
	r.lastPrice.WithLabelValues(ticker).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
