package ratelimit

import (
	"context"
	"log/slog"
)

// Option configures a limiter at construction.
type Option func(*options)

type options struct {
	clock     Clock
	logger    *slog.Logger
	subSecond bool
}

func newOptions(component string, opts []Option) options {
	o := options{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = SystemClock
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", component)
	return o
}

// WithClock sets the time source. A nil clock selects SystemClock.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger used for per-decision debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSubSecondRefill enables fractional refill for TokenBucket and
// LeakyBucket. Window counters ignore it.
//
// With this option, elapsed time is credited as floor(elapsed * rate)
// tokens and the refill mark advances only by the time those tokens
// represent, so partial seconds carry over to the next decision.
func WithSubSecondRefill() Option {
	return func(o *options) {
		o.subSecond = true
	}
}

func debugEnabled(l *slog.Logger) bool {
	return l.Enabled(context.Background(), slog.LevelDebug)
}
