package ratelimit

import (
	"log/slog"
	"math/bits"
	"sync"
	"time"
)

// bucket is the shared state machine behind TokenBucket and LeakyBucket.
//
// level counts units currently available. It starts at capacity, drains by
// the cost of each admitted request and is credited back at rate units per
// second of elapsed time.
type bucket struct {
	mu         sync.Mutex
	capacity   uint64
	level      uint64
	rate       uint64
	lastRefill time.Time
	subSecond  bool
	clock      Clock
	logger     *slog.Logger
}

func newBucket(capacity, rate uint64, o options) *bucket {
	return &bucket{
		capacity:   capacity,
		level:      capacity,
		rate:       rate,
		lastRefill: o.clock.Now(),
		subSecond:  o.subSecond,
		clock:      o.clock,
		logger:     o.logger,
	}
}

// take reconciles elapsed time and then admits iff at least n units are
// available. A zero cost is admitted without touching state.
func (b *bucket) take(n uint64) bool {
	if n == 0 {
		return true
	}
	return b.decide(n).Allowed
}

// decide is take reporting the level it left. A zero cost reads the level
// without reconciling.
func (b *bucket) decide(n uint64) Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if n == 0 {
		return Outcome{Allowed: true, Remaining: b.level, At: now}
	}

	b.refillLocked(now)

	if b.level >= n {
		b.level -= n
		if debugEnabled(b.logger) {
			b.logger.Debug("request admitted", "cost", n, "remaining", b.level)
		}
		return Outcome{Allowed: true, Remaining: b.level, At: now}
	}

	if debugEnabled(b.logger) {
		b.logger.Debug("request denied", "cost", n, "remaining", b.level)
	}
	return Outcome{Remaining: b.level, At: now}
}

// available returns the last reconciled level without reconciling.
func (b *bucket) available() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

// refillLocked credits elapsed time since lastRefill.
// Caller must hold lock.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}

	if b.subSecond {
		b.refillFractionalLocked(now, elapsed)
		return
	}

	secs := uint64(elapsed / time.Second)
	if secs == 0 {
		return
	}

	before := b.level
	b.level = b.creditLocked(secs)
	b.lastRefill = now

	if debugEnabled(b.logger) {
		b.logger.Debug("bucket refilled", "elapsed_seconds", secs, "added", b.level-before, "level", b.level)
	}
}

// refillFractionalLocked credits floor(elapsed * rate) units and advances
// lastRefill by the time those units represent. A full bucket does not bank
// credit: the mark moves to now.
// Caller must hold lock.
func (b *bucket) refillFractionalLocked(now time.Time, elapsed time.Duration) {
	need := b.capacity - b.level

	tokens, ok := mulDiv(uint64(elapsed), b.rate, uint64(time.Second))
	if !ok || tokens >= need {
		b.level = b.capacity
		b.lastRefill = now
		return
	}
	if tokens == 0 {
		return
	}

	// tokens < need <= capacity and tokens*1e9/rate <= elapsed, so neither overflows.
	spent, _ := mulDiv(tokens, uint64(time.Second), b.rate)
	b.level += tokens
	b.lastRefill = b.lastRefill.Add(time.Duration(spent))

	if debugEnabled(b.logger) {
		b.logger.Debug("bucket refilled", "elapsed", elapsed, "added", tokens, "level", b.level)
	}
}

// creditLocked returns the level after adding secs*rate, clamped to capacity.
// Caller must hold lock.
func (b *bucket) creditLocked(secs uint64) uint64 {
	need := b.capacity - b.level
	if secs > need/b.rate {
		return b.capacity
	}
	return b.level + secs*b.rate
}

// mulDiv returns floor(a*b/c) and false if the result does not fit in 64 bits.
func mulDiv(a, b, c uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, true
}
