// Package middleware provides the HTTP middleware used by the limitr server.
//
// # Middleware
//
//   - RequestID: assigns or propagates X-Request-ID
//   - Logging: one structured log line per request
//   - Metrics: request counts and latency by route
//   - Recovery: turns handler panics into 500 responses
//   - RateLimit: guards a handler with a ratelimit.Limiter
//   - ManagedRateLimit: guards a handler with a named limiter of a Manager
//
// # Order
//
// The server applies them outermost first:
//
//	Recovery → RequestID → Logging → tracing → Metrics → mux → ManagedRateLimit
//
// so that panics anywhere are recovered, and every log line and metric
// carries the request ID and final status. Rate limiting runs after routing
// so that rejected requests are still attributed to their route.
package middleware
