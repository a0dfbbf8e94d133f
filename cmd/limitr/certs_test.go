package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/limitr/pkg/cli"
)

// writeTestCert writes a self-signed certificate valid for the given
// period and returns the cert and key paths.
func writeTestCert(t *testing.T, notBefore, notAfter time.Time) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(42),
		Subject:               pkix.Name{CommonName: "limitr.local"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"limitr.local"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestCertsCommand(t *testing.T) {
	now := time.Now()
	certFile, keyFile := writeTestCert(t, now.Add(-time.Hour), now.Add(365*24*time.Hour))

	out, err := executeCommand(t, "certs", "--cert", certFile, "--key", keyFile, "--ca", certFile, "-o", "json")
	if err != nil {
		t.Fatalf("certs: %v", err)
	}

	var report certReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got := strings.Join(report.Checks, ","); got != "validity period,key pair,chain" {
		t.Errorf("checks = %s", got)
	}
	if report.Warning != "" {
		t.Errorf("unexpected warning %q", report.Warning)
	}
	if !strings.Contains(report.Certificate.Subject, "limitr.local") || report.Certificate.SerialNumber != "2a" {
		t.Errorf("certificate = %+v", report.Certificate)
	}
}

func TestCertsCommand_FromConfig(t *testing.T) {
	now := time.Now()
	certFile, keyFile := writeTestCert(t, now.Add(-time.Hour), now.Add(10*24*time.Hour+time.Hour))
	t.Setenv("LIMITR_SERVER_TLS_CERT_FILE", certFile)
	t.Setenv("LIMITR_SERVER_TLS_KEY_FILE", keyFile)

	out, err := executeCommand(t, "certs", "--config", writeConfig(t, ""))
	if err != nil {
		t.Fatalf("certs: %v", err)
	}
	for _, want := range []string{"FIELD", certFile, "key pair", "certificate expires in 10 days"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCertsCommand_Errors(t *testing.T) {
	now := time.Now()
	certFile, _ := writeTestCert(t, now.Add(-time.Hour), now.Add(24*time.Hour))
	_, otherKey := writeTestCert(t, now.Add(-time.Hour), now.Add(24*time.Hour))
	expired, _ := writeTestCert(t, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	otherCA, _ := writeTestCert(t, now.Add(-time.Hour), now.Add(24*time.Hour))

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "expired", args: []string{"--cert", expired}, wantCode: cli.ExitFailure},
		{name: "key mismatch", args: []string{"--cert", certFile, "--key", otherKey}, wantCode: cli.ExitFailure},
		{name: "unrelated ca", args: []string{"--cert", certFile, "--ca", otherCA}, wantCode: cli.ExitFailure},
		{name: "missing file", args: []string{"--cert", filepath.Join(t.TempDir(), "none.crt")}, wantCode: cli.ExitFailure},
		{name: "nothing configured", args: []string{"--config", writeConfig(t, "")}, wantCode: cli.ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, append([]string{"certs"}, tt.args...)...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Errorf("exit code = %d (%v), want %d", got, err, tt.wantCode)
			}
		})
	}
}
