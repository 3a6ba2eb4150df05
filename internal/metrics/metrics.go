package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the explanation engine.
type Metrics struct {
	ExplanationsTotal  prometheus.Counter
	ExplanationsFailed prometheus.Counter
	PredictionTimeouts prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter

	SelectionsByStrategy *prometheus.CounterVec
	ExplainLatency       prometheus.Histogram
	FitQuality           prometheus.Histogram
}

// New creates and registers all metrics with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics with the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExplanationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lime_explanations_total",
			Help: "Total number of per-instance explanations produced",
		}),
		ExplanationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lime_explanations_failed",
			Help: "Number of per-instance explanations that failed",
		}),
		PredictionTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "lime_prediction_timeouts",
			Help: "Number of model adapter calls that exceeded the prediction budget",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "lime_cache_hits",
			Help: "Number of explanations served from the memoization cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "lime_cache_misses",
			Help: "Number of explanations computed fresh",
		}),
		SelectionsByStrategy: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lime_selections_by_strategy",
				Help: "Feature selection runs per strategy",
			},
			[]string{"strategy"},
		),
		ExplainLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lime_explain_latency_seconds",
			Help:    "Wall time of one instance's full explanation pipeline",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FitQuality: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lime_fit_quality",
			Help:    "Weighted R-squared of fitted local surrogates (clamped to [-1, 1] for bucketing)",
			Buckets: []float64{-1, -0.5, 0, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1},
		}),
	}
}
