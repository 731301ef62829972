package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	decisions   *prometheus.CounterVec
	confidence  *prometheus.GaugeVec
	drift       *prometheus.GaugeVec
	size        *prometheus.GaugeVec
	open        *prometheus.GaugeVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var _ repository.Metrics = (*Recorder)(nil)

// New registers the recorder's collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chloe_decisions_total",
				Help: "Decisions emitted by symbol, action and reason code",
			},
			[]string{"symbol", "action", "reason"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chloe_final_confidence",
				Help: "Final confidence of the latest tick",
			},
			[]string{"symbol"},
		),
		drift: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chloe_drift_score",
				Help: "Drift score of the latest tick",
			},
			[]string{"symbol"},
		),
		size: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chloe_size_multiplier",
				Help: "Size multiplier of the latest tick",
			},
			[]string{"symbol"},
		),
		open: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chloe_position_open",
				Help: "1 long, -1 short, 0 flat",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chloe_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chloe_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision records one decision record and the tick state behind it.
func (r *Recorder) RecordDecision(rec models.DecisionRecord) {
	r.decisions.WithLabelValues(rec.Symbol, string(rec.Action), string(rec.Reason)).Inc()
	r.confidence.WithLabelValues(rec.Symbol).Set(rec.Confidence.FinalConfidence)
	r.drift.WithLabelValues(rec.Symbol).Set(rec.Drift.DriftScore)
	r.size.WithLabelValues(rec.Symbol).Set(rec.Size.Multiplier)

	switch rec.Action {
	case models.ActionEnter:
		r.open.WithLabelValues(rec.Symbol).Set(rec.Direction.Sign())
	case models.ActionExit:
		r.open.WithLabelValues(rec.Symbol).Set(0)
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
