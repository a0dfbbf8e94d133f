package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/limitr/pkg/server/middleware"
)

// HeaderAPIKey is the alternative to a bearer token.
const HeaderAPIKey = "X-API-Key"

type contextKey struct{}

// Middleware rejects requests without a valid key or token with 401 and
// stores the authenticated client in the request context.
func Middleware(v Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server.auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, err := v.Validate(extractKey(r))
			if err != nil {
				logger.WarnContext(r.Context(), "authentication failed",
					"error", err,
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"request_id", middleware.GetRequestID(r.Context()),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="limitr"`)
				message := "invalid API key"
				switch {
				case errors.Is(err, ErrMissingKey):
					message = "missing API key"
				case errors.Is(err, ErrExpiredToken):
					message = "token expired"
				}
				middleware.WriteError(w, r, http.StatusUnauthorized, "unauthorized", message)
				return
			}

			logger.DebugContext(r.Context(), "client authenticated", "client_id", client.ID, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), client)))
		})
	}
}

// extractKey reads a bearer token, falling back to the X-API-Key header.
func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderAPIKey))
}

// WithClient stores c in ctx.
func WithClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ClientFromContext returns the client stored by Middleware.
func ClientFromContext(ctx context.Context) (*Client, bool) {
	c, ok := ctx.Value(contextKey{}).(*Client)
	return c, ok
}
