package tls

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCertificateAndInfo(t *testing.T) {
	now := time.Now()
	certFile, _ := writeCert(t, now.Add(-time.Hour), now.Add(10*24*time.Hour+time.Hour))

	cert, err := LoadCertificate(certFile)
	if err != nil {
		t.Fatalf("LoadCertificate: %v", err)
	}

	info := ExtractCertificateInfo(cert, now)
	if !strings.Contains(info.Subject, "limitr-test") {
		t.Errorf("Subject = %q", info.Subject)
	}
	if info.DaysRemaining != 10 || info.Expired {
		t.Errorf("DaysRemaining = %d, Expired = %v", info.DaysRemaining, info.Expired)
	}
	if len(info.DNSNames) != 1 || info.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v", info.DNSNames)
	}
	if !info.IsCA || info.SerialNumber != "1" {
		t.Errorf("info = %+v", info)
	}

	later := ExtractCertificateInfo(cert, now.Add(30*24*time.Hour))
	if !later.Expired {
		t.Error("certificate should be expired 30 days later")
	}
}

func TestLoadCertificate_Errors(t *testing.T) {
	_, keyFile := validCert(t)
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(garbage, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(t.TempDir(), "none.pem"), garbage, keyFile} {
		if _, err := LoadCertificate(path); err == nil {
			t.Errorf("LoadCertificate(%s) succeeded", filepath.Base(path))
		}
	}
}

func TestVerifyChain(t *testing.T) {
	certFile, _ := validCert(t)
	otherCA, _ := validCert(t)

	cert, err := LoadCertificate(certFile)
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifyChain(cert, certFile); err != nil {
		t.Errorf("self-signed certificate should verify against itself: %v", err)
	}
	if err := VerifyChain(cert, otherCA); err == nil {
		t.Error("verification against an unrelated CA succeeded")
	}
}
