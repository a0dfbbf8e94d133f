package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mercator-hq/limitr/pkg/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var jwtNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestJWT(t *testing.T, cfg config.JWTConfig) *JWTValidator {
	t.Helper()
	if cfg.Secret == "" && cfg.SecretEnv == "" {
		cfg.Secret = testSecret
	}
	v, err := NewJWTValidator(&cfg, nil)
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}
	v.now = func() time.Time { return jwtNow }
	return v
}

func sign(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claimsFor(sub string, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "issuer.test",
		Audience:  jwt.ClaimStrings{"limitr"},
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

// ==================== Validate ====================

func TestJWTValidator_Validate(t *testing.T) {
	v := newTestJWT(t, config.JWTConfig{Issuer: "issuer.test", Audience: "limitr", Limiter: "tokens"})
	valid := claimsFor("worker-1", jwtNow.Add(time.Hour))

	noExp := valid
	noExp.ExpiresAt = nil
	noSub := valid
	noSub.Subject = ""
	otherAud := valid
	otherAud.Audience = jwt.ClaimStrings{"elsewhere"}

	tests := []struct {
		name       string
		token      string
		wantClient string
		wantErr    error
	}{
		{name: "valid", token: sign(t, jwt.SigningMethodHS256, testSecret, valid), wantClient: "worker-1"},
		{name: "empty", token: "", wantErr: ErrMissingKey},
		{name: "garbage", token: "not-a-jwt", wantErr: ErrInvalidKey},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, strings.Repeat("x", 32), valid), wantErr: ErrInvalidKey},
		{name: "wrong algorithm", token: sign(t, jwt.SigningMethodHS512, testSecret, valid), wantErr: ErrInvalidKey},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, testSecret, claimsFor("worker-1", jwtNow.Add(-time.Minute))), wantErr: ErrExpiredToken},
		{name: "missing exp", token: sign(t, jwt.SigningMethodHS256, testSecret, noExp), wantErr: ErrInvalidKey},
		{name: "missing subject", token: sign(t, jwt.SigningMethodHS256, testSecret, noSub), wantErr: ErrInvalidKey},
		{name: "wrong audience", token: sign(t, jwt.SigningMethodHS256, testSecret, otherAud), wantErr: ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := v.Validate(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.ID != tt.wantClient || c.Limiter != "tokens" {
				t.Errorf("client = %+v", c)
			}
		})
	}
}

func TestJWTValidator_Leeway(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{
		Subject:   "worker-1",
		ExpiresAt: jwt.NewNumericDate(jwtNow.Add(-10 * time.Second)),
	})

	strict := newTestJWT(t, config.JWTConfig{})
	if _, err := strict.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("strict error = %v, want ErrExpiredToken", err)
	}

	lenient := newTestJWT(t, config.JWTConfig{Leeway: 30 * time.Second})
	if _, err := lenient.Validate(token); err != nil {
		t.Errorf("lenient error = %v", err)
	}
}

// ==================== Issue ====================

func TestJWTValidator_IssueRoundTrip(t *testing.T) {
	v := newTestJWT(t, config.JWTConfig{Issuer: "issuer.test", Audience: "limitr"})

	token, err := v.Issue("svc-a", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.ID != "svc-a" {
		t.Errorf("client = %q", c.ID)
	}

	v.now = func() time.Time { return jwtNow.Add(2 * time.Minute) }
	if _, err := v.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("after ttl error = %v, want ErrExpiredToken", err)
	}

	if _, err := v.Issue("", time.Minute); err == nil {
		t.Error("expected error for empty subject")
	}
	if _, err := v.Issue("svc-a", 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestNewJWTValidator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.JWTConfig
		wantErr string
	}{
		{name: "short secret", cfg: config.JWTConfig{Secret: "short"}, wantErr: "at least 32 bytes"},
		{name: "unset env", cfg: config.JWTConfig{SecretEnv: "UNSET_SECRET"}, wantErr: "UNSET_SECRET is not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWTValidator(&tt.cfg, testEnv(nil))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	v, err := NewJWTValidator(&config.JWTConfig{SecretEnv: "JWT_SECRET", Limiter: "tokens"},
		testEnv(map[string]string{"JWT_SECRET": testSecret}))
	if err != nil {
		t.Fatalf("secret from env: %v", err)
	}
	if got := v.Limiters(); len(got) != 1 || got[0] != "tokens" {
		t.Errorf("Limiters() = %v", got)
	}
}

// ==================== Chain ====================

func TestChain(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWT = config.JWTConfig{Enabled: true, Secret: testSecret, Limiter: "tokens"}
	chain, err := New(cfg, testEnv(map[string]string{"BATCH_KEY": "sk-batch"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("len(chain) = %d, want 2", len(chain))
	}

	token := sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{
		Subject:   "worker-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	expired := sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{
		Subject:   "worker-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	tests := []struct {
		name       string
		credential string
		wantClient string
		wantErr    error
	}{
		{name: "api key", credential: "sk-mobile", wantClient: "mobile"},
		{name: "token", credential: token, wantClient: "worker-1"},
		{name: "missing", credential: "", wantErr: ErrMissingKey},
		{name: "unknown", credential: "sk-nope", wantErr: ErrInvalidKey},
		{name: "disabled key wins over invalid token", credential: "sk-retired", wantErr: ErrDisabledKey},
		{name: "expired token", credential: expired, wantErr: ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := chain.Validate(tt.credential)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.ID != tt.wantClient {
				t.Errorf("client = %q, want %q", c.ID, tt.wantClient)
			}
		})
	}

	if got := strings.Join(chain.Limiters(), ","); got != "bulk,per-client,tokens" {
		t.Errorf("Limiters() = %s", got)
	}
}

func TestNew_NothingConfigured(t *testing.T) {
	if _, err := New(&config.AuthConfig{Enabled: true}, nil); err == nil {
		t.Error("expected error with no keys or jwt")
	}
}
