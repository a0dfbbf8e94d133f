package auth

import "errors"

// Client is the holder of an API key or token.
type Client struct {
	// ID names the client in logs.
	ID string

	// Limiter is consumed once per request from this client. Empty means
	// the client is only subject to the limiter it asks about.
	Limiter string

	// Disabled clients are rejected.
	Disabled bool
}

var (
	// ErrMissingKey is returned when a request carries no API key.
	ErrMissingKey = errors.New("missing API key")

	// ErrInvalidKey is returned for keys that match no client.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrDisabledKey is returned for keys of disabled clients.
	ErrDisabledKey = errors.New("API key disabled")

	// ErrExpiredToken is returned for bearer tokens past their exp claim.
	ErrExpiredToken = errors.New("token expired")
)
