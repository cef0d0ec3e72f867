package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synb0_predictions_total",
		Help: "Total number of completed prediction requests",
	})

	predictionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synb0_prediction_errors_total",
		Help: "Total number of failed prediction requests",
	}, []string{"reason"})

	predictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "synb0_prediction_duration_seconds",
		Help:    "End to end latency of prediction requests",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	predictionBatchSamples = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "synb0_prediction_batch_samples",
		Help:    "Distribution of samples per prediction request",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	})
)

func recordPrediction(samples int, duration time.Duration) {
	predictionsTotal.Inc()
	predictionBatchSamples.Observe(float64(samples))
	predictionDuration.Observe(duration.Seconds())
}

func recordPredictionError(reason string) {
	predictionErrors.WithLabelValues(reason).Inc()
}
