package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PruneRecorder receives the number of records removed by each prune.
// *metrics.Collector implements it.
type PruneRecorder interface {
	RecordJournalPruned(backend string, n int64)
}

// Pruner enforces a retention window on a Store.
type Pruner struct {
	store    Store
	maxAge   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	recorder PruneRecorder
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

// WithPruneClock overrides the time source.
func WithPruneClock(now func() time.Time) PrunerOption {
	return func(p *Pruner) { p.now = now }
}

// WithPruneLogger sets the logger.
func WithPruneLogger(l *slog.Logger) PrunerOption {
	return func(p *Pruner) { p.logger = l }
}

// WithPruneRecorder reports prune counts to r.
func WithPruneRecorder(r PruneRecorder) PrunerOption {
	return func(p *Pruner) { p.recorder = r }
}

// NewPruner creates a Pruner removing records older than maxAge.
func NewPruner(store Store, maxAge time.Duration, opts ...PrunerOption) (*Pruner, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive, got %s", maxAge)
	}
	p := &Pruner{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "journal.pruner")
	return p, nil
}

// Prune deletes expired records and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		p.logger.ErrorContext(ctx, "journal prune failed", "error", err)
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	if p.recorder != nil {
		p.recorder.RecordJournalPruned(p.store.Backend(), n)
	}
	p.logger.InfoContext(ctx, "journal pruned",
		"removed", n,
		"cutoff", cutoff,
	)
	return n, nil
}

// Run adapts Prune to the maintenance job signature, logging errors.
func (p *Pruner) Run(ctx context.Context) {
	_, _ = p.Prune(ctx)
}
