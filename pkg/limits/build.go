package limits

import (
	"fmt"

	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/limits/ratelimit"
)

// Build constructs the limiter described by lc. Extra options, such as a
// clock or logger, are passed through to the constructor.
func Build(lc config.LimiterConfig, opts ...ratelimit.Option) (ratelimit.Limiter, error) {
	algo, err := ratelimit.ParseAlgorithm(lc.Algorithm)
	if err != nil {
		return nil, err
	}
	if lc.SubSecondRefill {
		opts = append(opts, ratelimit.WithSubSecondRefill())
	}

	switch algo {
	case ratelimit.AlgorithmTokenBucket:
		return ratelimit.NewTokenBucket(lc.Capacity, lc.Rate, opts...)
	case ratelimit.AlgorithmLeakyBucket:
		return ratelimit.NewLeakyBucket(lc.Capacity, lc.Rate, opts...)
	case ratelimit.AlgorithmFixedWindow:
		return ratelimit.NewFixedWindowCounter(lc.Limit, lc.Window, opts...)
	case ratelimit.AlgorithmSlidingWindow:
		return ratelimit.NewSlidingWindowCounter(lc.Limit, lc.Window, opts...)
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algo)
	}
}
