// Package server exposes limitr's limiters over HTTP.
//
// # Routes
//
//	POST /v1/limiters/{name}/consume?cost=N   take a decision (200 or 429)
//	GET  /v1/limiters                         status of every limiter
//	GET  /v1/limiters/{name}                  status of one limiter
//	GET  /v1/journal?limiter=&allowed=&limit= recent journaled decisions
//	GET  /health                              component health (path configurable)
//	GET  /version                             build information
//	GET  /metrics                             Prometheus metrics (path configurable)
//
// A consume response carries X-RateLimit-Limit and X-RateLimit-Remaining,
// and Retry-After when the request was denied:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 2
//	X-RateLimit-Limit: 10
//	X-RateLimit-Remaining: 0
//
//	{"limiter":"api","algorithm":"token_bucket","allowed":false,"cost":3,...}
//
// When server.limiter is configured, every /v1/ request first consumes one
// unit from that limiter. With Options.Auth set, /v1/ requests must then
// carry an API key (Authorization: Bearer or X-API-Key), and a client bound
// to its own limiter consumes one unit from it as well. Options.TLSConfig
// serves everything over HTTPS.
//
// # Lifecycle
//
//	srv, err := server.NewServer(server.Options{Config: cfg, Manager: mgr})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is cancelled and shutdown completes
package server
