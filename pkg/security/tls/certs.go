package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"mercator-hq/limitr/pkg/telemetry/health"
)

// ValidateCertificate parses the leaf of cert and checks that it is
// currently valid.
func ValidateCertificate(cert *tls.Certificate) error {
	leaf, err := leafOf(cert)
	if err != nil {
		return err
	}
	return ValidateX509Certificate(leaf, time.Now())
}

// ValidateX509Certificate checks cert's validity period against now.
func ValidateX509Certificate(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// ExpiryCheck returns a health check that fails once any serving
// certificate in cfg expires within warn.
func ExpiryCheck(cfg *tls.Config, warn time.Duration) health.CheckFunc {
	return func(ctx context.Context) error {
		now := time.Now()
		certs, err := servingCertificates(cfg)
		if err != nil {
			return err
		}
		for _, cert := range certs {
			leaf, err := leafOf(cert)
			if err != nil {
				return err
			}
			if err := ValidateX509Certificate(leaf, now); err != nil {
				return err
			}
			if left := leaf.NotAfter.Sub(now); left < warn {
				return fmt.Errorf("certificate %q expires in %s", leaf.Subject.CommonName, left.Round(time.Minute))
			}
		}
		return nil
	}
}

// servingCertificates returns the static certificates of cfg, or the one
// its GetCertificate callback currently serves.
func servingCertificates(cfg *tls.Config) ([]*tls.Certificate, error) {
	if len(cfg.Certificates) == 0 && cfg.GetCertificate != nil {
		cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
		if err != nil {
			return nil, err
		}
		return []*tls.Certificate{cert}, nil
	}
	out := make([]*tls.Certificate, len(cfg.Certificates))
	for i := range cfg.Certificates {
		out[i] = &cfg.Certificates[i]
	}
	return out, nil
}

func leafOf(cert *tls.Certificate) (*x509.Certificate, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is nil")
	}
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return leaf, nil
}
