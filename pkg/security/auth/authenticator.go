package auth

import (
	"errors"
	"os"
	"sort"

	"mercator-hq/limitr/pkg/config"
)

// Authenticator resolves a request credential to a client.
type Authenticator interface {
	// Validate returns the credential's holder, or ErrMissingKey,
	// ErrInvalidKey, ErrDisabledKey or ErrExpiredToken.
	Validate(credential string) (*Client, error)

	// Limiters names every limiter a client of this authenticator may
	// consume.
	Limiters() []string
}

// Chain tries each authenticator in order and returns the first holder
// found. When all fail, a specific rejection (disabled, expired) is
// preferred over ErrInvalidKey.
type Chain []Authenticator

// Validate implements Authenticator.
func (c Chain) Validate(credential string) (*Client, error) {
	if credential == "" {
		return nil, ErrMissingKey
	}
	err := ErrInvalidKey
	for _, a := range c {
		client, e := a.Validate(credential)
		if e == nil {
			return client, nil
		}
		if !errors.Is(e, ErrInvalidKey) {
			err = e
		}
	}
	return nil, err
}

// Limiters implements Authenticator.
func (c Chain) Limiters() []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range c {
		for _, name := range a.Limiters() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// New builds the authenticators enabled in cfg. Environment references are
// resolved with getenv, or os.Getenv when nil.
func New(cfg *config.AuthConfig, getenv func(string) string) (Chain, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	var chain Chain
	if len(cfg.Keys) > 0 {
		keys, err := NewKeyValidator(cfg, getenv)
		if err != nil {
			return nil, err
		}
		chain = append(chain, keys)
	}
	if cfg.JWT.Enabled {
		tokens, err := NewJWTValidator(&cfg.JWT, getenv)
		if err != nil {
			return nil, err
		}
		chain = append(chain, tokens)
	}
	if len(chain) == 0 {
		return nil, errors.New("auth: no keys or jwt configured")
	}
	return chain, nil
}
