// Package limits manages the named limiters configured for limitr.
//
// # Overview
//
// A Manager owns one ratelimit.Limiter per configured name and is the single
// entry point used by the HTTP server and the CLI:
//
//	mgr, err := limits.NewManager(cfg.Limiters,
//	    limits.WithMetrics(collector),
//	    limits.WithJournal(store),
//	    limits.WithTracer(tracer),
//	)
//
//	d, err := mgr.Check(ctx, "api", 1)
//	if err != nil {
//	    // unknown limiter or unsupported cost
//	}
//	if !d.Allowed {
//	    // reject, optionally honoring d.RetryAfter
//	}
//
// Every decision is counted in metrics, traced, and appended to the journal
// when one is configured. Journal failures are logged and never change the
// outcome of a check.
//
// # Cost
//
// Token buckets accept any cost. The other algorithms admit one unit per
// call, so Check rejects a cost above one for them with ErrCostUnsupported.
// A cost of zero is admitted by every algorithm without touching its state.
//
// # Architecture
//
// The algorithms themselves live in the ratelimit subpackage and know
// nothing about configuration, metrics or persistence.
package limits
