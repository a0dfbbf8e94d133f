package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mercator-hq/limitr/pkg/config"
)

// JWTValidator accepts HS256 bearer tokens. The sub claim becomes the
// client ID and every token holder shares the configured limiter.
type JWTValidator struct {
	secret   []byte
	parser   *jwt.Parser
	issuer   string
	audience string
	limiter  string
	now      func() time.Time
}

// NewJWTValidator builds a validator from cfg. A secret configured through
// secret_env is read with getenv.
func NewJWTValidator(cfg *config.JWTConfig, getenv func(string) string) (*JWTValidator, error) {
	secret := cfg.Secret
	if cfg.SecretEnv != "" {
		secret = getenv(cfg.SecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("auth: jwt secret: environment variable %s is not set", cfg.SecretEnv)
		}
	}
	if len(secret) < config.MinJWTSecretLength {
		return nil, fmt.Errorf("auth: jwt secret must be at least %d bytes", config.MinJWTSecretLength)
	}

	v := &JWTValidator{
		secret:   []byte(secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		limiter:  cfg.Limiter,
		now:      time.Now,
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// Validate verifies token and returns its holder.
func (v *JWTValidator) Validate(token string) (*Client, error) {
	if token == "" {
		return nil, ErrMissingKey
	}

	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidKey)
	}

	return &Client{ID: claims.Subject, Limiter: v.limiter}, nil
}

// Limiters returns the token holders' limiter, if any.
func (v *JWTValidator) Limiters() []string {
	if v.limiter == "" {
		return nil
	}
	return []string{v.limiter}
}

// Issue signs a token for subject valid for ttl, carrying the configured
// issuer and audience.
func (v *JWTValidator) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: subject is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("auth: ttl must be positive, got %s", ttl)
	}

	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
