package metrics

import (
	"math"

	"FinForecast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	registry    *prometheus.Registry
	epochs      *prometheus.CounterVec
	trainLoss   *prometheus.GaugeVec
	valLoss     *prometheus.GaugeVec
	trials      *prometheus.CounterVec
	trialTime   *prometheus.HistogramVec
	evaluation  *prometheus.GaugeVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder whose collectors live in reg. A nil reg gets a
// fresh registry, so several recorders can coexist in one process.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		epochs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finforecast_epochs_total",
				Help: "Total number of completed training epochs",
			},
			[]string{"variant", "stage"},
		),
		trainLoss: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforecast_train_loss",
				Help: "Mean training loss of the last completed epoch",
			},
			[]string{"variant", "stage"},
		),
		valLoss: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforecast_validation_loss",
				Help: "Mean validation loss of the last completed epoch",
			},
			[]string{"variant", "stage"},
		),
		trials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finforecast_trials_total",
				Help: "Total number of hyperparameter trials by outcome",
			},
			[]string{"variant", "status"},
		),
		trialTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finforecast_trial_duration_seconds",
				Help:    "Duration of hyperparameter trials in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"variant"},
		),
		evaluation: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforecast_evaluation",
				Help: "Held-out evaluation metrics of the final model",
			},
			[]string{"variant", "metric"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finforecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finforecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Registry exposes the registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordEpoch records the losses of one completed epoch.
func (r *Recorder) RecordEpoch(variant models.Variant, stage string, trainLoss, valLoss float64) {
	v := string(variant)
	r.epochs.WithLabelValues(v, stage).Inc()
	r.trainLoss.WithLabelValues(v, stage).Set(trainLoss)
	r.valLoss.WithLabelValues(v, stage).Set(valLoss)
}

// RecordTrial records one finished search trial.
func (r *Recorder) RecordTrial(variant models.Variant, status string, seconds float64) {
	r.trials.WithLabelValues(string(variant), status).Inc()
	r.trialTime.WithLabelValues(string(variant)).Observe(seconds)
}

// RecordEvaluation records held-out metrics. An undefined R2 is exported as NaN.
func (r *Recorder) RecordEvaluation(variant models.Variant, m models.Metrics) {
	v := string(variant)
	r.evaluation.WithLabelValues(v, "mse").Set(m.MSE)
	r.evaluation.WithLabelValues(v, "mae").Set(m.MAE)
	r2 := math.NaN()
	if m.R2.Defined {
		r2 = m.R2.Value
	}
	r.evaluation.WithLabelValues(v, "r2").Set(r2)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
