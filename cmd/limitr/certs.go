package main

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/limitr/pkg/cli"
	limitrtls "mercator-hq/limitr/pkg/security/tls"
)

// certReport is the output of `limitr certs`.
type certReport struct {
	File        string                     `json:"file" yaml:"file"`
	Certificate *limitrtls.CertificateInfo `json:"certificate" yaml:"certificate"`
	Checks      []string                   `json:"checks" yaml:"checks"`
	Warning     string                     `json:"warning,omitempty" yaml:"warning,omitempty"`
}

func (r certReport) Header() []string { return []string{"FIELD", "VALUE"} }

func (r certReport) Rows() [][]string {
	c := r.Certificate
	rows := [][]string{
		{"file", r.File},
		{"subject", c.Subject},
		{"issuer", c.Issuer},
		{"serial", c.SerialNumber},
		{"not_before", c.NotBefore.Format(time.RFC3339)},
		{"not_after", c.NotAfter.Format(time.RFC3339)},
		{"days_remaining", strconv.Itoa(c.DaysRemaining)},
	}
	if len(c.DNSNames) > 0 {
		rows = append(rows, []string{"dns_names", strings.Join(c.DNSNames, ",")})
	}
	if len(c.IPAddresses) > 0 {
		rows = append(rows, []string{"ip_addresses", strings.Join(c.IPAddresses, ",")})
	}
	for _, check := range r.Checks {
		rows = append(rows, []string{"check", check})
	}
	if r.Warning != "" {
		rows = append(rows, []string{"warning", r.Warning})
	}
	return rows
}

func newCertsCmd(g *globalOptions) *cobra.Command {
	var (
		certFile string
		keyFile  string
		caFile   string
		warnDays int
	)

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Inspect and validate the server TLS certificate",
		Long: `Inspect a TLS certificate and check that it can serve limitr.

Without --cert the certificate and key come from server.tls in the config
file. The command fails when the certificate is expired or not yet valid,
when the key does not match, or when the chain does not verify against --ca.

Examples:
  # Check the configured certificate
  limitr certs --config limitr.yaml

  # Check a certificate, its key and its chain
  limitr certs --cert server.crt --key server.key --ca ca.pem --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, _, err := g.formatter()
			if err != nil {
				return err
			}

			if certFile == "" {
				cfg, err := g.loadConfig()
				if err != nil {
					return err
				}
				certFile, keyFile = cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
			}
			if certFile == "" {
				return cli.NewConfigError("server.tls.cert_file", "no certificate: pass --cert or configure server.tls")
			}

			report, err := checkCertificate(certFile, keyFile, caFile, time.Duration(warnDays)*24*time.Hour, time.Now())
			if err != nil {
				return cli.NewCommandError("certs", err)
			}
			return formatter.FormatTo(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&certFile, "cert", "", "certificate file (default: server.tls.cert_file)")
	cmd.Flags().StringVar(&keyFile, "key", "", "private key file to match against the certificate")
	cmd.Flags().StringVar(&caFile, "ca", "", "CA bundle to verify the chain against")
	cmd.Flags().IntVar(&warnDays, "warn-days", 30, "warn when the certificate expires within this many days")
	return cmd
}

func checkCertificate(certFile, keyFile, caFile string, warn time.Duration, now time.Time) (*certReport, error) {
	cert, err := limitrtls.LoadCertificate(certFile)
	if err != nil {
		return nil, err
	}
	report := &certReport{
		File:        certFile,
		Certificate: limitrtls.ExtractCertificateInfo(cert, now),
	}

	if err := limitrtls.ValidateX509Certificate(cert, now); err != nil {
		return nil, err
	}
	report.Checks = append(report.Checks, "validity period")

	if keyFile != "" {
		if _, err := tls.LoadX509KeyPair(certFile, keyFile); err != nil {
			return nil, fmt.Errorf("certificate and key do not match: %w", err)
		}
		report.Checks = append(report.Checks, "key pair")
	}

	if caFile != "" {
		if err := limitrtls.VerifyChain(cert, caFile); err != nil {
			return nil, err
		}
		report.Checks = append(report.Checks, "chain")
	}

	if left := cert.NotAfter.Sub(now); left < warn {
		report.Warning = fmt.Sprintf("certificate expires in %d days", report.Certificate.DaysRemaining)
	}
	return report, nil
}
