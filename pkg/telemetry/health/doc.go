// Package health runs component health checks and serves the result over HTTP.
//
// Components register a CheckFunc under a name. Check runs all of them
// concurrently, each bounded by the checker's timeout, and reports
// "degraded" if any fails:
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("journal", store.Ping)
//	mux.Handle("GET /health", checker.Handler())
package health
