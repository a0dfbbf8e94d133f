package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindowCounter admits at most limit requests in any trailing
// window, keeping one timestamp per admission.
//
// On each decision the oldest timestamps are evicted while
// now - ts > window. An entry exactly window old is still counted.
type SlidingWindowCounter struct {
	mu     sync.Mutex
	limit  uint64
	window time.Duration
	log    []time.Time // oldest first
	clock  Clock
	logger *slog.Logger
}

// NewSlidingWindowCounter creates a counter with an empty log.
func NewSlidingWindowCounter(limit uint64, window time.Duration, opts ...Option) (*SlidingWindowCounter, error) {
	if limit == 0 {
		return nil, fmt.Errorf("sliding window: %w", ErrInvalidCapacity)
	}
	if window <= 0 {
		return nil, fmt.Errorf("sliding window: %w", ErrInvalidWindow)
	}
	o := newOptions("ratelimit.sliding_window", opts)
	return &SlidingWindowCounter{
		limit:  limit,
		window: window,
		clock:  o.clock,
		logger: o.logger,
	}, nil
}

// TryConsume evicts expired entries and admits iff fewer than limit remain.
func (sw *SlidingWindowCounter) TryConsume() bool {
	return sw.Decide(1).Allowed
}

// Decide is TryConsume returning the remaining admissions and the oldest
// logged timestamp. A zero cost reads the log without evicting.
func (sw *SlidingWindowCounter) Decide(cost uint64) Outcome {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	if cost == 0 {
		return sw.outcomeLocked(true, now)
	}
	sw.evictLocked(now)

	if uint64(len(sw.log)) >= sw.limit {
		if debugEnabled(sw.logger) {
			sw.logger.Debug("request denied", "in_window", len(sw.log))
		}
		return sw.outcomeLocked(false, now)
	}

	sw.log = append(sw.log, now)
	if debugEnabled(sw.logger) {
		sw.logger.Debug("request admitted", "in_window", len(sw.log))
	}
	return sw.outcomeLocked(true, now)
}

// Oldest returns the earliest logged admission as of the last decision.
func (sw *SlidingWindowCounter) Oldest() (time.Time, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if len(sw.log) == 0 {
		return time.Time{}, false
	}
	return sw.log[0], true
}

// Caller must hold lock.
func (sw *SlidingWindowCounter) outcomeLocked(allowed bool, now time.Time) Outcome {
	o := Outcome{Allowed: allowed, Remaining: sw.limit - uint64(len(sw.log)), At: now}
	if len(sw.log) > 0 {
		o.Oldest = sw.log[0]
	}
	return o
}

// Len returns the number of logged admissions as of the last decision.
func (sw *SlidingWindowCounter) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.log)
}

// Window returns the trailing window length.
func (sw *SlidingWindowCounter) Window() time.Duration {
	return sw.window
}

// Allow is TryConsume.
func (sw *SlidingWindowCounter) Allow() bool {
	return sw.TryConsume()
}

// Limit returns the maximum admissions per window.
func (sw *SlidingWindowCounter) Limit() uint64 {
	return sw.limit
}

// Remaining returns limit minus the logged admissions, without evicting.
func (sw *SlidingWindowCounter) Remaining() uint64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.limit - uint64(len(sw.log))
}

// Algorithm returns AlgorithmSlidingWindow.
func (sw *SlidingWindowCounter) Algorithm() Algorithm {
	return AlgorithmSlidingWindow
}

// evictLocked drops timestamps older than the window.
// Caller must hold lock.
func (sw *SlidingWindowCounter) evictLocked(now time.Time) {
	i := 0
	for i < len(sw.log) && now.Sub(sw.log[i]) > sw.window {
		i++
	}
	if i == 0 {
		return
	}
	clear(sw.log[:i])
	sw.log = sw.log[i:]
}
