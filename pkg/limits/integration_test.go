package limits

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/journal"
	"mercator-hq/limitr/pkg/telemetry/metrics"
	"mercator-hq/limitr/pkg/telemetry/tracing"
)

// TestIntegration_ManagerWithTelemetry runs decisions through the real
// metrics collector, tracer and journal.
func TestIntegration_ManagerWithTelemetry(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "limitr"}, prometheus.NewRegistry())

	exp := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewWithExporter(&config.TracingConfig{Enabled: true, Sampler: "always"}, exp)
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	store, err := journal.NewSQLiteStore(journal.SQLiteConfig{Path: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	m, clock := newTestManager(t,
		WithMetrics(collector),
		WithTracer(tracer),
		WithJournal(store),
	)

	for i := 0; i < 7; i++ {
		mustCheck(t, m, "api", 1)
	}
	clock.Advance(time.Second)
	mustCheck(t, m, "api", 1)

	expected := `
# HELP limitr_decisions_total Total number of rate limit decisions
# TYPE limitr_decisions_total counter
limitr_decisions_total{algorithm="token_bucket",limiter="api",result="allowed"} 6
limitr_decisions_total{algorithm="token_bucket",limiter="api",result="denied"} 2
# HELP limitr_journal_records_total Total number of decision records written
# TYPE limitr_journal_records_total counter
limitr_journal_records_total{backend="sqlite"} 8
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"limitr_decisions_total", "limitr_journal_records_total"); err != nil {
		t.Error(err)
	}

	denied := false
	n, err := store.Count(context.Background(), journal.Filter{Limiter: "api", Allowed: &denied})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("journaled denials = %d, want 2", n)
	}

	spans := exp.GetSpans()
	if len(spans) != 8 {
		t.Fatalf("exported %d spans, want 8", len(spans))
	}
	for _, s := range spans {
		if s.Name != tracing.SpanDecision {
			t.Errorf("unexpected span %q", s.Name)
		}
	}
}
