package tls

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"
)

// CertificateInfo is a printable summary of an x509 certificate.
type CertificateInfo struct {
	Subject       string    `json:"subject" yaml:"subject"`
	Issuer        string    `json:"issuer" yaml:"issuer"`
	SerialNumber  string    `json:"serial_number" yaml:"serial_number"`
	NotBefore     time.Time `json:"not_before" yaml:"not_before"`
	NotAfter      time.Time `json:"not_after" yaml:"not_after"`
	DaysRemaining int       `json:"days_remaining" yaml:"days_remaining"`
	Expired       bool      `json:"expired" yaml:"expired"`
	DNSNames      []string  `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	IPAddresses   []string  `json:"ip_addresses,omitempty" yaml:"ip_addresses,omitempty"`
	IsCA          bool      `json:"is_ca" yaml:"is_ca"`
}

// ExtractCertificateInfo summarizes cert as seen at now.
func ExtractCertificateInfo(cert *x509.Certificate, now time.Time) *CertificateInfo {
	info := &CertificateInfo{
		Subject:       cert.Subject.String(),
		Issuer:        cert.Issuer.String(),
		SerialNumber:  fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:     cert.NotBefore,
		NotAfter:      cert.NotAfter,
		DaysRemaining: int(cert.NotAfter.Sub(now).Hours() / 24),
		Expired:       now.After(cert.NotAfter),
		DNSNames:      cert.DNSNames,
		IsCA:          cert.IsCA,
	}
	for _, ip := range cert.IPAddresses {
		info.IPAddresses = append(info.IPAddresses, ip.String())
	}
	return info
}

// LoadCertificate reads the first PEM certificate in path.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no PEM certificate in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// VerifyChain verifies cert as a server certificate against the CAs in
// caFile.
func VerifyChain(cert *x509.Certificate, caFile string) error {
	pool, err := loadCertPool(caFile)
	if err != nil {
		return fmt.Errorf("failed to load CA: %w", err)
	}
	opts := x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate chain validation failed: %w", err)
	}
	return nil
}
