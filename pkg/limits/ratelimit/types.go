package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Algorithm identifies a rate limiting strategy.
type Algorithm string

const (
	AlgorithmTokenBucket   Algorithm = "token_bucket"
	AlgorithmLeakyBucket   Algorithm = "leaky_bucket"
	AlgorithmFixedWindow   Algorithm = "fixed_window"
	AlgorithmSlidingWindow Algorithm = "sliding_window"
)

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmTokenBucket,
		AlgorithmLeakyBucket,
		AlgorithmFixedWindow,
		AlgorithmSlidingWindow,
	}
}

// ParseAlgorithm converts a configuration string into an Algorithm.
// Hyphens and case are normalized, so "Token-Bucket" is accepted.
func ParseAlgorithm(s string) (Algorithm, error) {
	normalized := Algorithm(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, a := range Algorithms() {
		if a == normalized {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

// String returns the algorithm name.
func (a Algorithm) String() string {
	return string(a)
}

// UnitCost reports whether every request under this algorithm costs exactly one unit.
func (a Algorithm) UnitCost() bool {
	return a != AlgorithmTokenBucket
}

// Outcome is one decision together with the state it left behind, read
// under the same lock as the decision itself.
type Outcome struct {
	Allowed   bool
	Remaining uint64

	// At is the clock reading the decision was made at.
	At time.Time

	// Oldest is the earliest admission still logged by a sliding window.
	// It is zero for the other algorithms and for an empty log.
	Oldest time.Time
}

// Limiter is the capability shared by all four algorithms.
//
// Allow is a unit-cost TryConsume. Decide is the same decision returning
// an Outcome; unit-cost algorithms count any nonzero cost as one request.
// Remaining is a pure read and never reconciles time, so it may lag until
// the next decision.
type Limiter interface {
	Allow() bool
	Decide(cost uint64) Outcome
	Limit() uint64
	Remaining() uint64
	Algorithm() Algorithm
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*LeakyBucket)(nil)
	_ Limiter = (*FixedWindowCounter)(nil)
	_ Limiter = (*SlidingWindowCounter)(nil)
)
