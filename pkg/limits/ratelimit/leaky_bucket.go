package ratelimit

import "fmt"

// LeakyBucket admits unit-cost requests while draining at leakRate per
// second. It holds capacity slots; each admission occupies one and slots
// leak back over time.
//
// The bookkeeping is the same as TokenBucket with a fixed cost of one.
type LeakyBucket struct {
	b *bucket
}

// NewLeakyBucket creates an empty leaky bucket (all capacity remaining).
func NewLeakyBucket(capacity, leakRate uint64, opts ...Option) (*LeakyBucket, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("leaky bucket: %w", ErrInvalidCapacity)
	}
	if leakRate == 0 {
		return nil, fmt.Errorf("leaky bucket: %w", ErrInvalidRate)
	}
	o := newOptions("ratelimit.leaky_bucket", opts)
	return &LeakyBucket{b: newBucket(capacity, leakRate, o)}, nil
}

// TryConsume leaks elapsed capacity back and admits if any remains.
func (lb *LeakyBucket) TryConsume() bool {
	return lb.b.take(1)
}

// Decide is TryConsume returning the free slots left by the decision.
// A zero cost admits without leaking.
func (lb *LeakyBucket) Decide(cost uint64) Outcome {
	return lb.b.decide(min(cost, 1))
}

// Remaining returns free slots as of the last reconciliation.
func (lb *LeakyBucket) Remaining() uint64 {
	return lb.b.available()
}

// LeakRate returns slots freed per second.
func (lb *LeakyBucket) LeakRate() uint64 {
	return lb.b.rate
}

func (lb *LeakyBucket) Allow() bool          { return lb.TryConsume() }
func (lb *LeakyBucket) Limit() uint64        { return lb.b.capacity }
func (lb *LeakyBucket) Algorithm() Algorithm { return AlgorithmLeakyBucket }
