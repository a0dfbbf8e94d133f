package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/limitr/pkg/limits"
	"mercator-hq/limitr/pkg/limits/ratelimit"
)

// Rate limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// Checker makes limiter decisions by name. *limits.Manager implements it.
type Checker interface {
	Check(ctx context.Context, name string, cost uint64) (*limits.Decision, error)
}

// RateLimit guards next with l. Each request consumes one unit; denied
// requests get 429 with a one-second Retry-After hint.
//
// Example usage:
//
//	tb, _ := ratelimit.NewTokenBucket(100, 10)
//	handler = RateLimit(tb)(handler)
func RateLimit(l ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out := l.Decide(1)
			SetRateLimitHeaders(w, l.Limit(), out.Remaining)
			if !out.Allowed {
				tooManyRequests(w, r, time.Second)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ManagedRateLimit guards next with the named limiter of c. Decisions are
// metered, traced and journaled by the manager, and Retry-After reflects the
// limiter's own estimate.
func ManagedRateLimit(c Checker, name string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server.ratelimit", "limiter", name)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := c.Check(r.Context(), name, 1)
			if err != nil {
				logger.ErrorContext(r.Context(), "guard limiter check failed", "error", err)
				WriteError(w, r, http.StatusInternalServerError, "internal_error", "rate limit check failed")
				return
			}
			SetRateLimitHeaders(w, d.Limit, d.Remaining)
			if !d.Allowed {
				tooManyRequests(w, r, d.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders writes X-RateLimit-Limit and X-RateLimit-Remaining.
func SetRateLimitHeaders(w http.ResponseWriter, limit, remaining uint64) {
	w.Header().Set(HeaderLimit, strconv.FormatUint(limit, 10))
	w.Header().Set(HeaderRemaining, strconv.FormatUint(remaining, 10))
}

// RetryAfterSeconds rounds d up to whole seconds, with a minimum of one.
func RetryAfterSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return max(secs, 1)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	w.Header().Set(HeaderRetryAfter, strconv.FormatInt(RetryAfterSeconds(retryAfter), 10))
	WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
}
