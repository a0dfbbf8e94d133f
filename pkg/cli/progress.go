package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const progressBarWidth = 30

// ProgressReporter reports progress of a long-running operation.
type ProgressReporter interface {
	Start(total int64)
	Add(n int64)
	Finish()
}

// BarProgress draws a single-line progress bar with throughput. Redraws are
// throttled to MinInterval; the final state is always drawn by Finish.
type BarProgress struct {
	Label       string
	MinInterval time.Duration

	mu       sync.Mutex
	w        io.Writer
	total    int64
	current  int64
	started  time.Time
	lastDraw time.Time
	now      func() time.Time
}

// NewProgressReporter returns a BarProgress writing to w, or os.Stderr
// when w is nil.
func NewProgressReporter(w io.Writer, label string) *BarProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BarProgress{
		Label:       label,
		MinInterval: 100 * time.Millisecond,
		w:           w,
		now:         time.Now,
	}
}

// Start resets the counter and sets the expected total.
func (p *BarProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.current = 0
	p.started = p.now()
	p.lastDraw = time.Time{}
	p.draw()
}

// Add advances the counter by n. Safe for concurrent use.
func (p *BarProgress) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	if p.now().Sub(p.lastDraw) >= p.MinInterval {
		p.draw()
	}
}

// Finish draws the final state and ends the line.
func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draw()
	fmt.Fprintln(p.w)
}

// Current returns the counter value.
func (p *BarProgress) Current() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *BarProgress) draw() {
	now := p.now()
	p.lastDraw = now
	if p.total <= 0 {
		return
	}

	done := min(p.current, p.total)
	filled := int(done * progressBarWidth / p.total)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)

	var rate float64
	if elapsed := now.Sub(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}
	fmt.Fprintf(p.w, "\r%s [%s] %d/%d (%.0f/s)", p.Label, bar, done, p.total, rate)
}
