package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/limitr/pkg/config"
)

// otherLabel replaces label values beyond the cardinality limit.
const otherLabel = "other"

// Collector owns the Prometheus registry and every limitr metric.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	decisionMetrics *DecisionMetrics
	httpMetrics     *HTTPMetrics
	journalMetrics  *JournalMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration.
// If registry is nil, a fresh registry is created; Go runtime and process
// collectors are registered on it.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "limitr"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}

	c.decisionMetrics = NewDecisionMetrics(cfg, registry)
	c.httpMetrics = NewHTTPMetrics(cfg, registry)
	c.journalMetrics = NewJournalMetrics(cfg, registry)

	return c
}

// RecordDecision records the outcome of one limiter decision.
//
// Parameters:
//   - limiter: configured limiter name
//   - algorithm: algorithm name, e.g. "token_bucket"
//   - allowed: whether the request was admitted
//   - remaining: capacity left after the decision
//   - duration: time spent deciding
func (c *Collector) RecordDecision(limiter, algorithm string, allowed bool, remaining uint64, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.decisionMetrics.RecordDecision(limiter, algorithm, allowed, remaining, duration)
}

// RecordWindowsPruned records stale fixed-window entries removed from a limiter.
func (c *Collector) RecordWindowsPruned(limiter string, n int) {
	if !c.config.Enabled || n <= 0 {
		return
	}

	c.decisionMetrics.RecordPruned(limiter, n)
}

// RecordHTTPRequest records a served HTTP request.
// Routes beyond the cardinality limit are aggregated as "other".
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow(route) {
		route = otherLabel
	}

	c.httpMetrics.RecordRequest(route, status, duration)
}

// RecordJournalWrite records a journal append attempt.
func (c *Collector) RecordJournalWrite(backend string, err error) {
	if !c.config.Enabled {
		return
	}

	c.journalMetrics.RecordWrite(backend, err)
}

// RecordJournalPruned records records deleted by retention.
func (c *Collector) RecordJournalPruned(backend string, n int64) {
	if !c.config.Enabled || n <= 0 {
		return
	}

	c.journalMetrics.RecordPruned(backend, n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values it admits.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or can still be added.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
