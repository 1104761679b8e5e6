package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Inference Prometheus metrics.
var (
	InferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mushi",
			Name:      "inference_requests_total",
			Help:      "Total number of classifier invocations",
		},
		[]string{"status"},
	)

	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mushi",
			Name:      "inference_duration_seconds",
			Help:      "Duration of each prediction stage in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"}, // preprocess / classify / rank
	)

	ScoreCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mushi",
			Name:      "score_cache_total",
			Help:      "Score cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	TopConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mushi",
			Name:      "top_confidence",
			Help:      "Confidence of the best ranked class per prediction",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	JournalErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mushi",
			Name:      "journal_errors_total",
			Help:      "Prediction journal write failures",
		},
	)
)

var registerInference sync.Once

// RegisterInferenceMetrics registers the inference metrics. Called from main.
func RegisterInferenceMetrics() {
	registerInference.Do(func() {
		prometheus.MustRegister(InferenceRequestsTotal)
		prometheus.MustRegister(InferenceDuration)
		prometheus.MustRegister(ScoreCacheTotal)
		prometheus.MustRegister(TopConfidence)
		prometheus.MustRegister(JournalErrorsTotal)
	})
}
