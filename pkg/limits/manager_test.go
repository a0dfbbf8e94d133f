package limits

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/limitr/internal/clocktest"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/journal"
	"mercator-hq/limitr/pkg/limits/ratelimit"
	"mercator-hq/limitr/pkg/telemetry/logging"
)

type fakeRecorder struct {
	mu            sync.Mutex
	decisions     []string
	pruned        map[string]int
	journalWrites int
	journalErrs   int
}

func (r *fakeRecorder) RecordDecision(limiter, algorithm string, allowed bool, remaining uint64, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := "denied"
	if allowed {
		result = "allowed"
	}
	r.decisions = append(r.decisions, limiter+"/"+algorithm+"/"+result)
}

func (r *fakeRecorder) RecordWindowsPruned(limiter string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pruned == nil {
		r.pruned = make(map[string]int)
	}
	r.pruned[limiter] += n
}

func (r *fakeRecorder) RecordJournalWrite(backend string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journalWrites++
	if err != nil {
		r.journalErrs++
	}
}

func testLimiters() map[string]config.LimiterConfig {
	return map[string]config.LimiterConfig{
		"api":    {Algorithm: "token_bucket", Capacity: 5, Rate: 2},
		"queue":  {Algorithm: "leaky_bucket", Capacity: 1, Rate: 1},
		"login":  {Algorithm: "sliding_window", Limit: 2, Window: 10 * time.Second},
		"export": {Algorithm: "fixed_window", Limit: 2, Window: 10 * time.Second},
	}
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *clocktest.Manual) {
	t.Helper()
	clock := clocktest.NewManual(time.Time{})
	m, err := NewManager(testLimiters(), append([]ManagerOption{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, clock
}

func mustCheck(t *testing.T, m *Manager, name string, cost uint64) *Decision {
	t.Helper()
	d, err := m.Check(context.Background(), name, cost)
	if err != nil {
		t.Fatalf("Check(%q, %d) error = %v", name, cost, err)
	}
	return d
}

// ==================== Construction ====================

func TestNewManager(t *testing.T) {
	m, _ := newTestManager(t)

	want := []string{"api", "export", "login", "queue"}
	if got := m.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	l, ok := m.Limiter("login")
	if !ok || l.Algorithm() != ratelimit.AlgorithmSlidingWindow {
		t.Errorf("Limiter(login) = %v, %v", l, ok)
	}
	if _, ok := m.Limiter("missing"); ok {
		t.Error("Limiter(missing) should not be found")
	}
}

func TestNewManager_InvalidLimiter(t *testing.T) {
	_, err := NewManager(map[string]config.LimiterConfig{
		"ok":     {Algorithm: "token_bucket", Capacity: 1, Rate: 1},
		"broken": {Algorithm: "fixed_window", Limit: 1},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `"broken"`) || !errors.Is(err, ratelimit.ErrInvalidWindow) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuild_UnknownAlgorithm(t *testing.T) {
	if _, err := Build(config.LimiterConfig{Algorithm: "gcra"}); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

// ==================== Check ====================

func TestCheck_Errors(t *testing.T) {
	m, _ := newTestManager(t)

	tests := []struct {
		name    string
		limiter string
		cost    uint64
		wantErr error
	}{
		{name: "unknown limiter", limiter: "nope", cost: 1, wantErr: ErrUnknownLimiter},
		{name: "cost on sliding window", limiter: "login", cost: 2, wantErr: ErrCostUnsupported},
		{name: "cost on fixed window", limiter: "export", cost: 2, wantErr: ErrCostUnsupported},
		{name: "cost on leaky bucket", limiter: "queue", cost: 5, wantErr: ErrCostUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Check(context.Background(), tt.limiter, tt.cost)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheck_CancelledContext(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Check(ctx, "api", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Check() error = %v, want context.Canceled", err)
	}
}

func TestCheck_ZeroCostIsFree(t *testing.T) {
	m, _ := newTestManager(t)

	for _, name := range m.Names() {
		t.Run(name, func(t *testing.T) {
			before, _ := m.Status(name)
			d := mustCheck(t, m, name, 0)
			if !d.Allowed {
				t.Error("zero cost should be admitted")
			}
			after, _ := m.Status(name)
			if after.Remaining != before.Remaining {
				t.Errorf("remaining changed from %d to %d", before.Remaining, after.Remaining)
			}
		})
	}
}

func TestCheck_TokenBucketCostAndRetryAfter(t *testing.T) {
	m, clock := newTestManager(t)

	if d := mustCheck(t, m, "api", 5); !d.Allowed || d.Remaining != 0 {
		t.Fatalf("first check = %+v", d)
	}

	d := mustCheck(t, m, "api", 3)
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if d.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %s, want 2s", d.RetryAfter)
	}

	clock.Advance(d.RetryAfter)
	if d := mustCheck(t, m, "api", 3); !d.Allowed || d.Remaining != 1 {
		t.Errorf("after waiting = %+v", d)
	}
}

func TestCheck_CostAboveCapacityNeverRetries(t *testing.T) {
	m, _ := newTestManager(t)
	d := mustCheck(t, m, "api", 6)
	if d.Allowed || d.RetryAfter != 0 {
		t.Errorf("decision = %+v", d)
	}
}

func TestCheck_RetryAfterPerAlgorithm(t *testing.T) {
	tests := []struct {
		limiter string
		calls   int
		want    time.Duration
	}{
		{limiter: "queue", calls: 1, want: time.Second},
		// Clock sits 3s into a 10s window.
		{limiter: "export", calls: 2, want: 7 * time.Second},
		// Both admissions are at the clock; the oldest leaves just after a full window.
		{limiter: "login", calls: 2, want: 10*time.Second + time.Nanosecond},
	}

	for _, tt := range tests {
		t.Run(tt.limiter, func(t *testing.T) {
			m, clock := newTestManager(t)
			clock.Advance(3 * time.Second)
			for i := 0; i < tt.calls; i++ {
				if d := mustCheck(t, m, tt.limiter, 1); !d.Allowed {
					t.Fatalf("call %d denied", i)
				}
			}
			d := mustCheck(t, m, tt.limiter, 1)
			if d.Allowed {
				t.Fatal("expected denial")
			}
			if d.RetryAfter != tt.want {
				t.Errorf("RetryAfter = %s, want %s", d.RetryAfter, tt.want)
			}
		})
	}
}

func TestCheck_SlidingRetryAfterTracksOldest(t *testing.T) {
	m, clock := newTestManager(t)

	mustCheck(t, m, "login", 1)
	clock.Advance(6 * time.Second)
	mustCheck(t, m, "login", 1)
	clock.Advance(3 * time.Second)

	d := mustCheck(t, m, "login", 1)
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if want := time.Second + time.Nanosecond; d.RetryAfter != want {
		t.Fatalf("RetryAfter = %s, want %s", d.RetryAfter, want)
	}

	clock.Advance(d.RetryAfter - time.Nanosecond)
	if d := mustCheck(t, m, "login", 1); d.Allowed {
		t.Error("admitted while the oldest entry is exactly one window old")
	}
	clock.Advance(time.Nanosecond)
	if d := mustCheck(t, m, "login", 1); !d.Allowed {
		t.Errorf("denied after waiting RetryAfter: %+v", d)
	}
}

func TestCheck_RemainingMatchesDecision(t *testing.T) {
	m, _ := newTestManager(t)

	want := []uint64{4, 3, 2, 1, 0}
	for i, w := range want {
		d := mustCheck(t, m, "api", 1)
		if !d.Allowed || d.Remaining != w {
			t.Fatalf("call %d: allowed=%v remaining=%d, want %d", i, d.Allowed, d.Remaining, w)
		}
	}
}

func TestRefillWait(t *testing.T) {
	tests := []struct {
		name      string
		deficit   uint64
		rate      uint64
		subSecond bool
		want      time.Duration
	}{
		{name: "none", deficit: 0, rate: 1, want: 0},
		{name: "exact seconds", deficit: 4, rate: 2, want: 2 * time.Second},
		{name: "rounds up", deficit: 5, rate: 2, want: 3 * time.Second},
		{name: "sub-second", deficit: 1, rate: 4, subSecond: true, want: 250 * time.Millisecond},
		{name: "saturates", deficit: ^uint64(0), rate: 1, want: time.Duration(1<<63 - 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := refillWait(tt.deficit, tt.rate, tt.subSecond); got != tt.want {
				t.Errorf("refillWait() = %s, want %s", got, tt.want)
			}
		})
	}
}

// ==================== Side effects ====================

func TestCheck_RecordsMetricsAndJournal(t *testing.T) {
	rec := &fakeRecorder{}
	store := journal.NewMemoryStore(10)
	m, clock := newTestManager(t, WithMetrics(rec), WithJournal(store))

	ctx := logging.WithRequestID(context.Background(), "req-42")
	d, err := m.Check(ctx, "login", 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.RequestID != "req-42" || !d.CheckedAt.Equal(clock.Now()) {
		t.Errorf("decision = %+v", d)
	}
	mustCheck(t, m, "login", 1)
	mustCheck(t, m, "login", 1)

	want := []string{"login/sliding_window/allowed", "login/sliding_window/allowed", "login/sliding_window/denied"}
	if strings.Join(rec.decisions, ",") != strings.Join(want, ",") {
		t.Errorf("decisions = %v, want %v", rec.decisions, want)
	}
	if rec.journalWrites != 3 || rec.journalErrs != 0 {
		t.Errorf("journal writes = %d, errors = %d", rec.journalWrites, rec.journalErrs)
	}

	records, err := store.Query(context.Background(), journal.Filter{Limiter: "login"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("journal has %d records, want 3", len(records))
	}
	if records[0].Allowed || records[2].RequestID != "req-42" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestCheck_JournalFailureDoesNotChangeDecision(t *testing.T) {
	rec := &fakeRecorder{}
	store := journal.NewMemoryStore(10)
	store.Close()
	m, _ := newTestManager(t, WithMetrics(rec), WithJournal(store))

	d := mustCheck(t, m, "api", 1)
	if !d.Allowed {
		t.Error("decision should not depend on the journal")
	}
	if rec.journalErrs != 1 {
		t.Errorf("journal errors = %d, want 1", rec.journalErrs)
	}
}

// ==================== Status / maintenance ====================

func TestStatus(t *testing.T) {
	m, _ := newTestManager(t)
	mustCheck(t, m, "api", 2)

	s, err := m.Status("api")
	if err != nil {
		t.Fatal(err)
	}
	want := Status{Name: "api", Algorithm: ratelimit.AlgorithmTokenBucket, Limit: 5, Remaining: 3, Rate: 2}
	if s != want {
		t.Errorf("Status() = %+v, want %+v", s, want)
	}

	if _, err := m.Status("nope"); !errors.Is(err, ErrUnknownLimiter) {
		t.Errorf("Status(nope) error = %v", err)
	}

	all := m.Statuses()
	if len(all) != 4 || all[0].Name != "api" || all[3].Name != "queue" {
		t.Errorf("Statuses() = %+v", all)
	}
}

func TestClearOldWindows(t *testing.T) {
	rec := &fakeRecorder{}
	m, clock := newTestManager(t, WithMetrics(rec))

	mustCheck(t, m, "export", 1)
	clock.Advance(10 * time.Second)
	mustCheck(t, m, "export", 1)

	if n := m.ClearOldWindows(); n != 1 {
		t.Errorf("ClearOldWindows() = %d, want 1", n)
	}
	m.RunMaintenance(context.Background())
	if rec.pruned["export"] != 1 {
		t.Errorf("pruned metric = %d, want 1", rec.pruned["export"])
	}
}
