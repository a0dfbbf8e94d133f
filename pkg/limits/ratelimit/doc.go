// Package ratelimit provides in-process admission control primitives.
//
// # Overview
//
// Four interchangeable algorithms decide whether a single request may proceed:
//
//   - Token Bucket: bursts up to capacity, refilled at a fixed rate, variable cost
//   - Leaky Bucket: steady outflow, every request costs one unit
//   - Fixed Window: counts requests per epoch-aligned window
//   - Sliding Window: exact log of admissions over the trailing window
//
// Every decision is a plain bool. Nothing blocks, nothing sleeps and no
// goroutines are started.
//
// # Token Bucket
//
//	bucket, err := ratelimit.NewTokenBucket(10, 2) // burst 10, 2 tokens/sec
//	if err != nil {
//	    return err
//	}
//	if bucket.TryConsume(3) {
//	    // admitted
//	}
//
// Refill happens in whole seconds: tokens are credited as
// floor(elapsed seconds) * rate, and the refill mark only moves once at
// least one whole second has passed. WithSubSecondRefill switches to
// fractional accounting where no partial credit is lost.
//
// # Leaky Bucket
//
//	bucket, _ := ratelimit.NewLeakyBucket(5, 1)
//	ok := bucket.TryConsume()
//
// # Fixed Window
//
//	counter, _ := ratelimit.NewFixedWindowCounter(100, time.Minute)
//	ok := counter.TryConsume()
//
// Windows are aligned to the Unix epoch, so independent counters agree on
// boundaries. A client may be admitted up to twice the limit across a
// boundary. Counters for past windows accumulate until ClearOldWindows is
// called.
//
// # Sliding Window
//
//	counter, _ := ratelimit.NewSlidingWindowCounter(3, 2*time.Second)
//	ok := counter.TryConsume()
//
// # Outcomes
//
// Decide makes the same decision as TryConsume and returns an Outcome with
// the remaining level, the decision time and, for a sliding window, the
// oldest logged admission. All of it is read under the decision's lock, so
// concurrent callers never see each other's levels:
//
//	out := counter.Decide(1)
//	if !out.Allowed {
//	    wait := out.Oldest.Add(window).Sub(out.At)
//	}
//
// # Time
//
// All types read time from a Clock. The default is the system clock; tests
// inject a manual clock with WithClock.
//
// # Thread Safety
//
// Every limiter guards its state with its own mutex and may be shared
// directly between goroutines.
package ratelimit
