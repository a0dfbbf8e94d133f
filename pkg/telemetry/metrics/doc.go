// Package metrics provides Prometheus metrics collection for limitr.
//
// # Metrics Categories
//
//   - Decision Metrics: admissions and denials per limiter, decision latency,
//     remaining capacity and pruned fixed windows
//   - HTTP Metrics: request count and duration per route
//   - Journal Metrics: records written, write errors and retention deletions
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDecision("api", "token_bucket", true, 9, 2*time.Microsecond)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Every Record method is a no-op when metrics are disabled.
//
// # Cardinality
//
// HTTP route labels pass through a CardinalityLimiter; values beyond the
// limit are recorded as "other". Limiter names come from configuration and
// are bounded by it.
package metrics
