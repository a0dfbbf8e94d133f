package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/limitr/pkg/config"
)

// JournalMetrics tracks the decision journal.
type JournalMetrics struct {
	writesTotal *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	prunedTotal *prometheus.CounterVec
}

// NewJournalMetrics creates and registers journal metrics with the provided registry.
func NewJournalMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *JournalMetrics {
	jm := &JournalMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "journal",
				Name:      "records_total",
				Help:      "Total number of decision records written",
			},
			[]string{"backend"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "journal",
				Name:      "write_errors_total",
				Help:      "Total number of failed journal writes",
			},
			[]string{"backend"},
		),
		prunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "journal",
				Name:      "pruned_total",
				Help:      "Total number of records deleted by retention",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(jm.writesTotal, jm.errorsTotal, jm.prunedTotal)

	return jm
}

// RecordWrite counts a write attempt as a record or an error.
func (jm *JournalMetrics) RecordWrite(backend string, err error) {
	if err != nil {
		jm.errorsTotal.WithLabelValues(backend).Inc()
		return
	}
	jm.writesTotal.WithLabelValues(backend).Inc()
}

// RecordPruned adds n deleted records.
func (jm *JournalMetrics) RecordPruned(backend string, n int64) {
	jm.prunedTotal.WithLabelValues(backend).Add(float64(n))
}
