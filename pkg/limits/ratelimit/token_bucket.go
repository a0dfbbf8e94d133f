package ratelimit

import "fmt"

// TokenBucket admits requests of variable cost against a reservoir that
// holds at most capacity tokens and regains refillRate tokens per second.
//
// # Algorithm
//
//  1. Credit floor(elapsed seconds) * refillRate tokens, clamped to capacity
//  2. Move the refill mark to now only if at least one whole second elapsed
//  3. Admit iff tokens >= cost, subtracting the cost
//
// A denied request leaves the level unchanged.
type TokenBucket struct {
	b *bucket
}

// NewTokenBucket creates a full token bucket.
//
// Example:
//
//	// burst of 10, 2 tokens per second sustained
//	bucket, err := NewTokenBucket(10, 2)
func NewTokenBucket(capacity, refillRate uint64, opts ...Option) (*TokenBucket, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("token bucket: %w", ErrInvalidCapacity)
	}
	if refillRate == 0 {
		return nil, fmt.Errorf("token bucket: %w", ErrInvalidRate)
	}
	o := newOptions("ratelimit.token_bucket", opts)
	return &TokenBucket{b: newBucket(capacity, refillRate, o)}, nil
}

// TryConsume attempts to take amount tokens.
// An amount of zero always succeeds and does not refill; an amount larger
// than the capacity never succeeds.
func (tb *TokenBucket) TryConsume(amount uint64) bool {
	return tb.b.take(amount)
}

// Decide is TryConsume returning the level left by the decision.
func (tb *TokenBucket) Decide(amount uint64) Outcome {
	return tb.b.decide(amount)
}

// AvailableTokens returns the level as of the last reconciliation.
// It does not credit time elapsed since then.
func (tb *TokenBucket) AvailableTokens() uint64 {
	return tb.b.available()
}

// Capacity returns the maximum number of tokens.
func (tb *TokenBucket) Capacity() uint64 {
	return tb.b.capacity
}

// RefillRate returns tokens added per second.
func (tb *TokenBucket) RefillRate() uint64 {
	return tb.b.rate
}

// Allow consumes a single token.
func (tb *TokenBucket) Allow() bool {
	return tb.TryConsume(1)
}

// Limit returns the capacity.
func (tb *TokenBucket) Limit() uint64 {
	return tb.b.capacity
}

// Remaining is AvailableTokens.
func (tb *TokenBucket) Remaining() uint64 {
	return tb.AvailableTokens()
}

// Algorithm returns AlgorithmTokenBucket.
func (tb *TokenBucket) Algorithm() Algorithm {
	return AlgorithmTokenBucket
}
