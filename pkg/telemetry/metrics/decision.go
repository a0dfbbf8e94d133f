package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/limitr/pkg/config"
)

// DecisionMetrics tracks limiter decisions.
//
// Metrics:
//   - limitr_decisions_total: decisions by limiter, algorithm, result
//   - limitr_decision_duration_seconds: time spent inside a limiter
//   - limitr_remaining: capacity left after the latest decision
//   - limitr_windows_pruned_total: stale fixed-window entries removed
type DecisionMetrics struct {
	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	remaining        *prometheus.GaugeVec
	windowsPruned    *prometheus.CounterVec
}

// NewDecisionMetrics creates and registers decision metrics with the provided registry.
func NewDecisionMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *DecisionMetrics {
	factory := promauto.With(registry)

	return &DecisionMetrics{
		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "decisions_total",
				Help:      "Total number of rate limit decisions",
			},
			[]string{"limiter", "algorithm", "result"},
		),

		decisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "decision_duration_seconds",
				Help:      "Time spent making a rate limit decision",
				Buckets:   []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
			},
			[]string{"limiter"},
		),

		remaining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "remaining",
				Help:      "Capacity remaining after the most recent decision",
			},
			[]string{"limiter"},
		),

		windowsPruned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "windows_pruned_total",
				Help:      "Total number of stale fixed-window counters removed",
			},
			[]string{"limiter"},
		),
	}
}

// RecordDecision records a single decision.
func (dm *DecisionMetrics) RecordDecision(limiter, algorithm string, allowed bool, remaining uint64, duration time.Duration) {
	dm.decisionsTotal.WithLabelValues(limiter, algorithm, resultLabel(allowed)).Inc()
	dm.decisionDuration.WithLabelValues(limiter).Observe(duration.Seconds())
	dm.remaining.WithLabelValues(limiter).Set(float64(remaining))
}

// RecordPruned adds n pruned windows for limiter.
func (dm *DecisionMetrics) RecordPruned(limiter string, n int) {
	dm.windowsPruned.WithLabelValues(limiter).Add(float64(n))
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
