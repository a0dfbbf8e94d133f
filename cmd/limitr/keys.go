package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/security/auth"
)

var envSafe = regexp.MustCompile(`[^A-Z0-9]+`)

// generatedKey is the output of `limitr keys generate`.
type generatedKey struct {
	Client  string `json:"client" yaml:"client"`
	Key     string `json:"key" yaml:"key"`
	KeyEnv  string `json:"key_env" yaml:"key_env"`
	Limiter string `json:"limiter,omitempty" yaml:"limiter,omitempty"`
}

// issuedToken is the output of `limitr keys token`.
type issuedToken struct {
	Subject   string    `json:"subject" yaml:"subject"`
	Token     string    `json:"token" yaml:"token"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

func newKeysCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys and bearer tokens",
	}
	cmd.AddCommand(newKeysGenerateCmd(g), newKeysTokenCmd(g))
	return cmd
}

func newKeysTokenCmd(g *globalOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with the configured JWT secret",
		Long: `Sign an HS256 token accepted by server.auth.jwt. The subject becomes the
client ID in logs; the token carries the configured issuer and audience.

Examples:
  limitr keys token --subject batch-worker --ttl 24h
  limitr keys token --subject ci --ttl 15m --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, format, err := g.formatter()
			if err != nil {
				return err
			}
			if subject == "" {
				return cli.NewConfigError("subject", "--subject is required")
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Server.Auth.JWT.Enabled {
				return cli.NewConfigError("server.auth.jwt", "jwt authentication is not enabled")
			}
			signer, err := auth.NewJWTValidator(&cfg.Server.Auth.JWT, os.Getenv)
			if err != nil {
				return cli.NewConfigError("server.auth.jwt", err.Error())
			}

			expires := time.Now().Add(ttl).UTC().Truncate(time.Second)
			token, err := signer.Issue(subject, ttl)
			if err != nil {
				return cli.NewCommandError("keys token", err)
			}
			out := issuedToken{Subject: subject, Token: token, ExpiresAt: expires}

			w := cmd.OutOrStdout()
			if format != cli.FormatText {
				return formatter.FormatTo(w, out)
			}
			fmt.Fprintf(w, "Token for %s (expires %s):\n\n%s\n", out.Subject, out.ExpiresAt.Format(time.RFC3339), out.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func newKeysGenerateCmd(g *globalOptions) *cobra.Command {
	var (
		client  string
		limiter string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an API key for a client",
		Long: `Generate a random API key and print the server.auth entry that accepts it.

The key itself is printed once. Store it in the environment variable named
by key_env on the server and hand it to the client.

Examples:
  limitr keys generate --client mobile --limiter per-client
  limitr keys generate --client batch --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, format, err := g.formatter()
			if err != nil {
				return err
			}
			if client == "" {
				return cli.NewConfigError("client", "--client is required")
			}

			key, err := auth.GenerateKey()
			if err != nil {
				return cli.NewCommandError("keys generate", err)
			}
			out := generatedKey{
				Client:  client,
				Key:     key,
				KeyEnv:  keyEnvName(client),
				Limiter: limiter,
			}

			w := cmd.OutOrStdout()
			if format != cli.FormatText {
				return formatter.FormatTo(w, out)
			}

			fmt.Fprintf(w, "Key for %s: %s\n\n", out.Client, out.Key)
			fmt.Fprintln(w, "⚠  Store the key securely; it is not shown again")
			fmt.Fprintf(w, "\nexport %s=%s\n\n", out.KeyEnv, out.Key)
			fmt.Fprintln(w, "Configuration snippet:")
			fmt.Fprintln(w, "server:")
			fmt.Fprintln(w, "  auth:")
			fmt.Fprintln(w, "    keys:")
			fmt.Fprintf(w, "      - client: %s\n", out.Client)
			fmt.Fprintf(w, "        key_env: %s\n", out.KeyEnv)
			if out.Limiter != "" {
				fmt.Fprintf(w, "        limiter: %s\n", out.Limiter)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "client name (required)")
	cmd.Flags().StringVar(&limiter, "limiter", "", "per-client limiter to bind the key to")
	return cmd
}

// keyEnvName derives LIMITR_KEY_<CLIENT> from a client name.
func keyEnvName(client string) string {
	name := envSafe.ReplaceAllString(strings.ToUpper(client), "_")
	return "LIMITR_KEY_" + strings.Trim(name, "_")
}
