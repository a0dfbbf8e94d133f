package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to limiter spans.
const (
	AttrLimiter   = "limitr.limiter"
	AttrAlgorithm = "limitr.algorithm"
	AttrCost      = "limitr.cost"
	AttrAllowed   = "limitr.allowed"
	AttrRemaining = "limitr.remaining"
	AttrRequestID = "limitr.request_id"
)

// SpanDecision is the name of the span covering one limiter check.
const SpanDecision = "limiter.check"

// StartDecision starts a span for a check of cost units against a limiter.
func (t *Tracer) StartDecision(ctx context.Context, limiter, algorithm string, cost uint64) (context.Context, trace.Span) {
	return t.Start(ctx, SpanDecision,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrLimiter, limiter),
			attribute.String(AttrAlgorithm, algorithm),
			attribute.Int64(AttrCost, clampInt64(cost)),
		),
	)
}

// SetDecisionAttributes records the outcome of a limiter check.
func SetDecisionAttributes(span trace.Span, allowed bool, remaining uint64) {
	span.SetAttributes(
		attribute.Bool(AttrAllowed, allowed),
		attribute.Int64(AttrRemaining, clampInt64(remaining)),
	)
	if !allowed {
		span.AddEvent("rate_limited")
	}
}

// SetRequestID tags span with the request ID assigned by the server.
func SetRequestID(span trace.Span, requestID string) {
	if requestID == "" {
		return
	}
	span.SetAttributes(attribute.String(AttrRequestID, requestID))
}

// Span attributes are signed; counters near the uint64 ceiling saturate.
func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}
