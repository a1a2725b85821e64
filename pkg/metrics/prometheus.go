package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"OptArb/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	results    *prometheus.CounterVec
	errors     *prometheus.CounterVec
	drops      *prometheus.CounterVec
	lastPrice  *prometheus.GaugeVec
	groupDelta *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		results: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optarb_results_total",
				Help: "Processed observations by resulting signal",
			},
			[]string{"instrument", "signal"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optarb_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		drops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optarb_dropped_total",
				Help: "Items dropped by a bounded stage",
			},
			[]string{"stage"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optarb_last_mid_price",
				Help: "Last option mid price seen by the analytics stage",
			},
			[]string{"instrument"},
		),
		groupDelta: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optarb_group_delta",
				Help: "Weighted average delta of an instrument group",
			},
			[]string{"group"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optarb_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordResult(instrument string, signal models.Signal) {
	r.results.WithLabelValues(instrument, string(signal)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordDrop(stage string) {
	r.drops.WithLabelValues(stage).Inc()
}

func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

func (r *Recorder) RecordGroupDelta(group string, delta float64) {
	r.groupDelta.WithLabelValues(group).Set(delta)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
