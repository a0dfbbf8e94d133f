package middleware

import (
	"net/http"
	"time"
)

// HTTPRecorder receives per-request measurements.
// *metrics.Collector implements it.
type HTTPRecorder interface {
	RecordHTTPRequest(route string, status int, duration time.Duration)
}

// Metrics records each request under its matched route pattern, so that
// path parameters do not inflate label cardinality. Unrouted requests are
// recorded as "unmatched".
func Metrics(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			rec.RecordHTTPRequest(route, rw.statusCode, time.Since(start))
		})
	}
}
