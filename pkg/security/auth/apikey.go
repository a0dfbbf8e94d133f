package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"

	"mercator-hq/limitr/pkg/config"
)

// KeyValidator resolves API keys to clients. It is immutable after
// construction and safe for concurrent use.
type KeyValidator struct {
	keys    map[[sha256.Size]byte]*Client
	clients []*Client
}

// NewKeyValidator builds a validator from cfg. Keys configured through
// key_env are read with getenv; an unset variable is an error.
func NewKeyValidator(cfg *config.AuthConfig, getenv func(string) string) (*KeyValidator, error) {
	v := &KeyValidator{
		keys: make(map[[sha256.Size]byte]*Client, len(cfg.Keys)),
	}

	for _, kc := range cfg.Keys {
		key := kc.Key
		if kc.KeyEnv != "" {
			key = getenv(kc.KeyEnv)
			if key == "" {
				return nil, fmt.Errorf("auth: key for client %q: environment variable %s is not set", kc.Client, kc.KeyEnv)
			}
		}
		if key == "" {
			return nil, fmt.Errorf("auth: client %q has no key", kc.Client)
		}

		sum := sha256.Sum256([]byte(key))
		if prev, ok := v.keys[sum]; ok {
			return nil, fmt.Errorf("auth: clients %q and %q share a key", prev.ID, kc.Client)
		}

		c := &Client{ID: kc.Client, Limiter: kc.Limiter, Disabled: kc.Disabled}
		v.keys[sum] = c
		v.clients = append(v.clients, c)
	}

	sort.Slice(v.clients, func(i, j int) bool { return v.clients[i].ID < v.clients[j].ID })
	return v, nil
}

// Validate returns the client owning key.
func (v *KeyValidator) Validate(key string) (*Client, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	c, ok := v.keys[sha256.Sum256([]byte(key))]
	if !ok {
		return nil, ErrInvalidKey
	}
	if c.Disabled {
		return nil, ErrDisabledKey
	}
	return c, nil
}

// Clients returns all configured clients sorted by ID.
func (v *KeyValidator) Clients() []Client {
	out := make([]Client, len(v.clients))
	for i, c := range v.clients {
		out[i] = *c
	}
	return out
}

// Limiters returns the distinct client limiter names, sorted.
func (v *KeyValidator) Limiters() []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range v.clients {
		if c.Limiter != "" && !seen[c.Limiter] {
			seen[c.Limiter] = true
			names = append(names, c.Limiter)
		}
	}
	sort.Strings(names)
	return names
}

// KeyPrefix marks keys minted by GenerateKey.
const KeyPrefix = "lk_"

// GenerateKey returns a new random API key: KeyPrefix followed by 32
// random bytes in unpadded base64url.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate key: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}
