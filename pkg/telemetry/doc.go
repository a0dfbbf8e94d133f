// Package telemetry groups limitr's observability packages.
//
// # Components
//
//   - logging: structured logging on log/slog with context fields
//   - metrics: Prometheus metrics for decisions, HTTP and the journal
//   - health: component health checks and the /health endpoint
//   - tracing: OpenTelemetry spans for HTTP requests and limiter decisions
//
// Each subpackage is configured from config.TelemetryConfig and wired
// together by the run command.
package telemetry
