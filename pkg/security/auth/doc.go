/*
Package auth authenticates API clients by key or signed bearer token.

Keys come from config.AuthConfig. Each key belongs to a named client and may
carry a limiter that the server consumes once per request from that client,
in addition to the limiter named in the URL. HS256 tokens are accepted when
server.auth.jwt is enabled; their sub claim names the client and all token
holders share the jwt limiter.

# Usage

	authn, err := auth.New(&cfg.Server.Auth, os.Getenv)
	if err != nil {
		return err
	}
	handler = auth.Middleware(authn, logger)(handler)

Clients send their key as a bearer token or in the X-API-Key header:

	curl -H "Authorization: Bearer $KEY" -X POST localhost:8080/v1/limiters/api/consume

Inside a handler the authenticated client is available from the context:

	if c, ok := auth.ClientFromContext(r.Context()); ok {
		logger.Info("request", "client_id", c.ID)
	}

Only SHA-256 digests of keys are held in memory.
*/
package auth
