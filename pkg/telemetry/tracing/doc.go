// Package tracing provides OpenTelemetry tracing for limitr.
//
// # Overview
//
// Spans are created for every HTTP request served by the limiter API and for
// every decision taken by the limiter manager. Incoming W3C Trace Context
// headers are honored so a caller's trace continues through limitr:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// Spans are exported over OTLP/gRPC to the configured collector.
//
// # Sampling
//
// Three strategies are supported, each wrapped in a parent-based sampler so
// that an upstream sampling decision wins:
//   - always: keep every trace
//   - never: drop every trace
//   - ratio: keep the configured fraction of traces
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.StartDecision(ctx, "api", "token_bucket", 1)
//	defer span.End()
//
// When tracing is disabled New returns a tracer backed by the noop provider,
// so call sites never need to check Enabled.
package tracing
