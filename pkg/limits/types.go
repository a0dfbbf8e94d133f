package limits

import (
	"errors"
	"time"

	"mercator-hq/limitr/pkg/limits/ratelimit"
)

var (
	// ErrUnknownLimiter is returned for names absent from configuration.
	ErrUnknownLimiter = errors.New("unknown limiter")

	// ErrCostUnsupported is returned when a unit-cost algorithm is asked
	// for more than one unit.
	ErrCostUnsupported = errors.New("cost above 1 is not supported by this algorithm")
)

// Decision is the outcome of one Check.
type Decision struct {
	// Limiter is the configured limiter name.
	Limiter string

	// Algorithm is the limiter's algorithm.
	Algorithm ratelimit.Algorithm

	// Allowed reports whether the request was admitted.
	Allowed bool

	// Cost is the number of units requested.
	Cost uint64

	// Limit is the limiter's capacity or per-window limit.
	Limit uint64

	// Remaining is the capacity left after the decision.
	Remaining uint64

	// RetryAfter estimates how long until the same request could succeed.
	// Zero when the request was allowed or can never be admitted.
	RetryAfter time.Duration

	// RequestID is copied from the request context, if present.
	RequestID string

	// CheckedAt is when the decision was taken.
	CheckedAt time.Time
}

// Status is a point-in-time view of one limiter.
type Status struct {
	Name      string
	Algorithm ratelimit.Algorithm
	Limit     uint64
	Remaining uint64

	// Rate is set for bucket algorithms, Window for window counters.
	Rate   uint64
	Window time.Duration
}

// Recorder receives decision and maintenance metrics.
// *metrics.Collector implements it.
type Recorder interface {
	RecordDecision(limiter, algorithm string, allowed bool, remaining uint64, duration time.Duration)
	RecordWindowsPruned(limiter string, n int)
	RecordJournalWrite(backend string, err error)
}
