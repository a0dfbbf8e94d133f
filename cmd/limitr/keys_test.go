package main

import (
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/security/auth"
)

func TestKeysGenerate(t *testing.T) {
	out, err := executeCommand(t, "keys", "generate", "--client", "mobile-app", "--limiter", "api", "-o", "json")
	if err != nil {
		t.Fatalf("keys generate: %v", err)
	}

	var got generatedKey
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Client != "mobile-app" || got.KeyEnv != "LIMITR_KEY_MOBILE_APP" || got.Limiter != "api" {
		t.Errorf("got %+v", got)
	}

	// The generated entry is accepted by the validator.
	v, err := auth.NewKeyValidator(&config.AuthConfig{
		Enabled: true,
		Keys:    []config.APIKeyConfig{{Client: got.Client, KeyEnv: got.KeyEnv, Limiter: got.Limiter}},
	}, func(name string) string {
		if name == got.KeyEnv {
			return got.Key
		}
		return ""
	})
	if err != nil {
		t.Fatalf("NewKeyValidator: %v", err)
	}
	if c, err := v.Validate(got.Key); err != nil || c.ID != "mobile-app" {
		t.Errorf("Validate = %+v, %v", c, err)
	}
}

func TestKeysGenerate_Text(t *testing.T) {
	out, err := executeCommand(t, "keys", "generate", "--client", "batch")
	if err != nil {
		t.Fatalf("keys generate: %v", err)
	}
	for _, want := range []string{"Key for batch: " + auth.KeyPrefix, "export LIMITR_KEY_BATCH=", "key_env: LIMITR_KEY_BATCH"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "limiter:") {
		t.Errorf("unexpected limiter line:\n%s", out)
	}
}

func TestKeysGenerate_RequiresClient(t *testing.T) {
	_, err := executeCommand(t, "keys", "generate")
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("exit code = %d (%v), want %d", cli.ExitCode(err), err, cli.ExitConfig)
	}
}

func TestKeyEnvName(t *testing.T) {
	tests := map[string]string{
		"mobile":      "LIMITR_KEY_MOBILE",
		"web.v2":      "LIMITR_KEY_WEB_V2",
		"--odd  name": "LIMITR_KEY_ODD_NAME",
	}
	for in, want := range tests {
		if got := keyEnvName(in); got != want {
			t.Errorf("keyEnvName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeysToken(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	t.Setenv("LIMITR_TEST_JWT_SECRET", secret)
	path := writeConfig(t, `
server:
  auth:
    enabled: true
    jwt:
      enabled: true
      secret_env: LIMITR_TEST_JWT_SECRET
      issuer: limitr-test
      limiter: login
`)

	out, err := executeCommand(t, "keys", "token", "--config", path, "--subject", "batch-worker", "--ttl", "30m", "-o", "json")
	if err != nil {
		t.Fatalf("keys token: %v", err)
	}
	var got issuedToken
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Subject != "batch-worker" || got.Token == "" {
		t.Errorf("got %+v", got)
	}

	v, err := auth.NewJWTValidator(&config.JWTConfig{Secret: secret, Issuer: "limitr-test"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c, err := v.Validate(got.Token); err != nil || c.ID != "batch-worker" {
		t.Errorf("Validate = %+v, %v", c, err)
	}
}

func TestKeysToken_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing subject", args: []string{"keys", "token", "--config", writeConfig(t, "")}},
		{name: "jwt disabled", args: []string{"keys", "token", "--config", writeConfig(t, ""), "--subject", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			if code := cli.ExitCode(err); code != cli.ExitConfig {
				t.Errorf("exit code = %d (%v), want %d", code, err, cli.ExitConfig)
			}
		})
	}
}
