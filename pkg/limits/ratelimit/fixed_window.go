package ratelimit

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// FixedWindowCounter admits up to limit requests per epoch-aligned window.
//
// The window index of an instant is floor(unixNano / window). Counts are
// kept per index so that a request landing in a new window starts from
// zero. Entries for past windows remain until ClearOldWindows removes them.
//
// A burst of up to 2*limit is possible across a window boundary.
type FixedWindowCounter struct {
	mu      sync.Mutex
	limit   uint64
	window  time.Duration
	windows map[int64]uint64
	clock   Clock
	logger  *slog.Logger
}

// NewFixedWindowCounter creates a counter with no windows recorded.
func NewFixedWindowCounter(limit uint64, window time.Duration, opts ...Option) (*FixedWindowCounter, error) {
	if limit == 0 {
		return nil, fmt.Errorf("fixed window: %w", ErrInvalidCapacity)
	}
	if window <= 0 {
		return nil, fmt.Errorf("fixed window: %w", ErrInvalidWindow)
	}
	o := newOptions("ratelimit.fixed_window", opts)
	return &FixedWindowCounter{
		limit:   limit,
		window:  window,
		windows: make(map[int64]uint64),
		clock:   o.clock,
		logger:  o.logger,
	}, nil
}

// TryConsume admits iff the current window has fewer than limit requests.
func (fw *FixedWindowCounter) TryConsume() bool {
	return fw.Decide(1).Allowed
}

// Decide is TryConsume returning what the current window still admits.
// A zero cost only reads the count.
func (fw *FixedWindowCounter) Decide(cost uint64) Outcome {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.clock.Now()
	idx := fw.indexOf(now)
	count := fw.windows[idx]
	if cost == 0 {
		return Outcome{Allowed: true, Remaining: fw.limit - count, At: now}
	}
	if count >= fw.limit {
		if debugEnabled(fw.logger) {
			fw.logger.Debug("request denied", "window", idx, "count", count)
		}
		return Outcome{At: now}
	}

	fw.windows[idx] = count + 1
	if debugEnabled(fw.logger) {
		fw.logger.Debug("request admitted", "window", idx, "count", count+1)
	}
	return Outcome{Allowed: true, Remaining: fw.limit - count - 1, At: now}
}

// ClearOldWindows removes every window older than the current one and
// returns how many were removed.
func (fw *FixedWindowCounter) ClearOldWindows() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	current := fw.indexOf(fw.clock.Now())
	removed := 0
	for idx := range fw.windows {
		if idx < current {
			delete(fw.windows, idx)
			removed++
		}
	}
	return removed
}

// Windows returns a copy of the per-window counts.
func (fw *FixedWindowCounter) Windows() map[int64]uint64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return maps.Clone(fw.windows)
}

// Window returns the window length.
func (fw *FixedWindowCounter) Window() time.Duration {
	return fw.window
}

// Allow is TryConsume.
func (fw *FixedWindowCounter) Allow() bool {
	return fw.TryConsume()
}

// Limit returns the per-window limit.
func (fw *FixedWindowCounter) Limit() uint64 {
	return fw.limit
}

// Remaining returns how many requests the current window still admits.
func (fw *FixedWindowCounter) Remaining() uint64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.limit - fw.windows[fw.indexOf(fw.clock.Now())]
}

// Algorithm returns AlgorithmFixedWindow.
func (fw *FixedWindowCounter) Algorithm() Algorithm {
	return AlgorithmFixedWindow
}

func (fw *FixedWindowCounter) indexOf(t time.Time) int64 {
	n := t.UnixNano()
	w := int64(fw.window)
	idx := n / w
	if n%w < 0 {
		idx--
	}
	return idx
}
