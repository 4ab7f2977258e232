// Package metrics provides Prometheus instrumentation for the staycast
// server.
//
// It exposes operational metrics about the serving pipeline and the forecast
// engine, all scraped from the /metrics HTTP endpoint:
//   - staycast_predict_seconds: Histogram of align+infer duration
//   - staycast_ledger_append_seconds: Histogram of ledger append duration
//   - staycast_forecast_fit_seconds: Histogram of forecast model fit duration
//   - staycast_predictions_total: Counter of served predictions by verdict
//   - staycast_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	PredictSeconds      prometheus.Histogram
	LedgerAppendSeconds prometheus.Histogram
	ForecastFitSeconds  prometheus.Histogram
	PredictionsTotal    *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics. The storage label records
// which ledger backend the process runs with.
func New(storage string) *Metrics {
	return &Metrics{
		PredictSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "staycast_predict_seconds",
			Help:    "Time spent aligning features and running inference",
			Buckets: prometheus.DefBuckets,
		}),

		LedgerAppendSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "staycast_ledger_append_seconds",
			Help: "Time spent appending predictions to the ledger",
			ConstLabels: prometheus.Labels{
				"storage": storage,
			},
			Buckets: prometheus.DefBuckets,
		}),

		ForecastFitSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "staycast_forecast_fit_seconds",
			Help:    "Time spent fitting the booking-volume forecast model",
			Buckets: prometheus.DefBuckets,
		}),

		PredictionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "staycast_predictions_total",
			Help: "Total predictions served, by verdict",
		}, []string{"prediction"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "staycast_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordPredict records the time spent aligning and inferring.
func (m *Metrics) RecordPredict(seconds float64) {
	m.PredictSeconds.Observe(seconds)
}

// RecordAppend records the time spent appending to the ledger.
func (m *Metrics) RecordAppend(seconds float64) {
	m.LedgerAppendSeconds.Observe(seconds)
}

// RecordFit records the time spent fitting the forecast model.
func (m *Metrics) RecordFit(seconds float64) {
	m.ForecastFitSeconds.Observe(seconds)
}

// RecordPrediction increments the served-prediction counter for a verdict.
func (m *Metrics) RecordPrediction(verdict string) {
	m.PredictionsTotal.WithLabelValues(verdict).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
