package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region metrics

// Metrics is the runner's instrumentation. All values are cumulative across
// a process lifetime; per-run numbers live in the audit trail.
type Metrics struct {
	EntitiesTotal   *prometheus.CounterVec
	DecisionsTotal  *prometheus.CounterVec
	IterationsTotal prometheus.Counter
	CostTotal       prometheus.Counter
	RunDuration     prometheus.Histogram
}

// NewMetrics registers the runner's collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntitiesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "entities_total",
			Help:      "Entities finished, by stopping reason.",
		}, []string{"reason"}),
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "decisions_total",
			Help:      "Evaluator decisions applied, by label.",
		}, []string{"decision"}),
		IterationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "iterations_total",
			Help:      "Iterations charged against entity budgets.",
		}),
		CostTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "cost_total",
			Help:      "Cumulative evaluator-reported cost.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scout",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of one entity run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// #endregion metrics
