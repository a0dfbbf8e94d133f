package limits

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/journal"
	"mercator-hq/limitr/pkg/limits/ratelimit"
	"mercator-hq/limitr/pkg/telemetry/logging"
	"mercator-hq/limitr/pkg/telemetry/tracing"
)

// Manager owns the configured limiters. The set of limiters is fixed at
// construction, so lookups need no locking; each limiter synchronizes itself.
type Manager struct {
	limiters map[string]*entry
	names    []string

	journal journal.Store
	metrics Recorder
	tracer  *tracing.Tracer
	clock   ratelimit.Clock

	baseLogger *slog.Logger
	logger     *slog.Logger
}

type entry struct {
	name    string
	cfg     config.LimiterConfig
	limiter ratelimit.Limiter
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithJournal appends every decision to store.
func WithJournal(store journal.Store) ManagerOption {
	return func(m *Manager) { m.journal = store }
}

// WithMetrics reports decisions to r.
func WithMetrics(r Recorder) ManagerOption {
	return func(m *Manager) { m.metrics = r }
}

// WithTracer creates a span per decision.
func WithTracer(t *tracing.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = t }
}

// WithLogger sets the logger shared by the manager and its limiters.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.baseLogger = l }
}

// WithClock sets the time source shared by the manager and its limiters.
func WithClock(c ratelimit.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// NewManager builds one limiter per entry in cfg, in name order. The first
// failure is returned wrapped with the limiter name.
func NewManager(cfg map[string]config.LimiterConfig, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		limiters: make(map[string]*entry, len(cfg)),
		clock:    ratelimit.SystemClock,
		tracer:   tracing.Noop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.baseLogger == nil {
		m.baseLogger = slog.Default()
	}
	m.logger = m.baseLogger.With("component", "limits.manager")

	for name := range cfg {
		m.names = append(m.names, name)
	}
	slices.Sort(m.names)

	for _, name := range m.names {
		lc := cfg[name]
		l, err := Build(lc,
			ratelimit.WithClock(m.clock),
			ratelimit.WithLogger(m.baseLogger.With("limiter", name)),
		)
		if err != nil {
			return nil, fmt.Errorf("limiter %q: %w", name, err)
		}
		m.limiters[name] = &entry{name: name, cfg: lc, limiter: l}
	}

	m.logger.Info("limiters ready", "count", len(m.names))
	return m, nil
}

// Names returns the configured limiter names in sorted order.
func (m *Manager) Names() []string {
	return slices.Clone(m.names)
}

// Limiter returns the named limiter for direct use, e.g. by HTTP middleware.
func (m *Manager) Limiter(name string) (ratelimit.Limiter, bool) {
	e, ok := m.limiters[name]
	if !ok {
		return nil, false
	}
	return e.limiter, true
}

// Check asks the named limiter to admit cost units.
//
// Errors are returned only for unknown limiters, unsupported costs and a
// cancelled context; a denial is a successful Check with Allowed false.
func (m *Manager) Check(ctx context.Context, name string, cost uint64) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := m.limiters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLimiter, name)
	}
	algo := e.limiter.Algorithm()
	if cost > 1 && algo.UnitCost() {
		return nil, fmt.Errorf("limiter %q (%s): %w", name, algo, ErrCostUnsupported)
	}

	ctx, span := m.tracer.StartDecision(ctx, name, algo.String(), cost)
	defer span.End()

	start := time.Now()
	out := e.limiter.Decide(cost)
	elapsed := time.Since(start)
	allowed := out.Allowed

	d := &Decision{
		Limiter:   name,
		Algorithm: algo,
		Allowed:   allowed,
		Cost:      cost,
		Limit:     e.limiter.Limit(),
		Remaining: out.Remaining,
		RequestID: logging.GetRequestID(ctx),
		CheckedAt: out.At,
	}
	if !allowed {
		d.RetryAfter = retryAfter(e, cost, out)
	}

	tracing.SetRequestID(span, d.RequestID)
	tracing.SetDecisionAttributes(span, d.Allowed, d.Remaining)

	if m.metrics != nil {
		m.metrics.RecordDecision(name, algo.String(), allowed, d.Remaining, elapsed)
	}
	m.record(ctx, d)

	if !allowed {
		m.logger.DebugContext(ctx, "request denied",
			"limiter", name,
			"algorithm", algo,
			"cost", cost,
			"remaining", d.Remaining,
			"retry_after", d.RetryAfter,
		)
	}
	return d, nil
}

// record appends d to the journal. Failures are logged, not returned.
func (m *Manager) record(ctx context.Context, d *Decision) {
	if m.journal == nil {
		return
	}
	err := m.journal.Append(ctx, &journal.Record{
		Limiter:   d.Limiter,
		Algorithm: d.Algorithm.String(),
		Allowed:   d.Allowed,
		Cost:      d.Cost,
		Remaining: d.Remaining,
		RequestID: d.RequestID,
		Timestamp: d.CheckedAt,
	})
	if m.metrics != nil {
		m.metrics.RecordJournalWrite(m.journal.Backend(), err)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "journal append failed",
			"limiter", d.Limiter,
			"error", err,
		)
	}
}

// retryAfter estimates the wait before a denied request could succeed,
// from the state the denial left behind.
func retryAfter(e *entry, cost uint64, out ratelimit.Outcome) time.Duration {
	now := out.At
	switch l := e.limiter.(type) {
	case *ratelimit.TokenBucket:
		if cost > l.Capacity() {
			return 0
		}
		return refillWait(cost-min(out.Remaining, cost), l.RefillRate(), e.cfg.SubSecondRefill)
	case *ratelimit.LeakyBucket:
		return refillWait(1, l.LeakRate(), e.cfg.SubSecondRefill)
	case *ratelimit.FixedWindowCounter:
		w := l.Window().Nanoseconds()
		into := now.UnixNano() % w
		if into < 0 {
			into += w
		}
		return time.Duration(w - into)
	case *ratelimit.SlidingWindowCounter:
		if out.Oldest.IsZero() {
			return l.Window()
		}
		// An entry exactly one window old still counts.
		return max(out.Oldest.Add(l.Window()).Sub(now)+time.Nanosecond, time.Nanosecond)
	default:
		return 0
	}
}

// refillWait is the time for rate to produce deficit units. Without
// sub-second refill credit arrives in whole seconds.
func refillWait(deficit, rate uint64, subSecond bool) time.Duration {
	if deficit == 0 || rate == 0 {
		return 0
	}
	unit := uint64(time.Second)
	if subSecond {
		if deficit > math.MaxInt64/unit {
			return math.MaxInt64
		}
		ns := deficit * unit
		return time.Duration(ns/rate + min(ns%rate, 1))
	}
	secs := deficit/rate + min(deficit%rate, 1)
	if secs > math.MaxInt64/unit {
		return math.MaxInt64
	}
	return time.Duration(secs * unit)
}

// Status returns a snapshot of the named limiter.
func (m *Manager) Status(name string) (Status, error) {
	e, ok := m.limiters[name]
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrUnknownLimiter, name)
	}
	return Status{
		Name:      name,
		Algorithm: e.limiter.Algorithm(),
		Limit:     e.limiter.Limit(),
		Remaining: e.limiter.Remaining(),
		Rate:      e.cfg.Rate,
		Window:    e.cfg.Window,
	}, nil
}

// Statuses returns a snapshot of every limiter, sorted by name.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.names))
	for _, name := range m.names {
		s, _ := m.Status(name)
		out = append(out, s)
	}
	return out
}

// ClearOldWindows drops expired counters from every fixed-window limiter
// and returns the total removed.
func (m *Manager) ClearOldWindows() int {
	total := 0
	for _, name := range m.names {
		fw, ok := m.limiters[name].limiter.(*ratelimit.FixedWindowCounter)
		if !ok {
			continue
		}
		n := fw.ClearOldWindows()
		if m.metrics != nil {
			m.metrics.RecordWindowsPruned(name, n)
		}
		total += n
	}
	if total > 0 {
		m.logger.Debug("cleared old windows", "removed", total)
	}
	return total
}

// RunMaintenance adapts ClearOldWindows to the scheduler job signature.
func (m *Manager) RunMaintenance(ctx context.Context) {
	m.ClearOldWindows()
}
