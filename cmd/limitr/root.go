package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/telemetry/logging"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	output     string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "limitr",
		Short: "limitr - rate limiting primitives and admission-control service",
		Long: `limitr provides four rate limiting algorithms (token bucket, leaky bucket,
fixed window and sliding window) and serves named limiters over HTTP.

Clients ask a limiter to admit a request and receive an allow or deny
decision, with the remaining capacity and a Retry-After estimate. Decisions
are metered, traced and optionally journaled to SQLite.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "limitr.yaml", "config file path (.yaml or .toml)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "load environment variables from these files before reading config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text, json, yaml, csv")

	cmd.AddCommand(
		newVersionCmd(),
		newRunCmd(opts),
		newValidateCmd(opts),
		newDemoCmd(),
		newBenchCmd(opts),
		newJournalCmd(opts),
		newCertsCmd(opts),
		newKeysCmd(opts),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

// loadConfig reads the config file with environment overrides applied.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(o.envFiles...); err != nil {
		return nil, cli.NewConfigError("env-file", err.Error())
	}
	cfg, err := config.LoadConfigWithEnvOverrides(o.configPath)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if o.logLevel != "" {
		cfg.Telemetry.Logging.Level = o.logLevel
	}
	return cfg, nil
}

func (o *globalOptions) formatter() (cli.Formatter, cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(o.output)
	if err != nil {
		return nil, "", err
	}
	f, err := cli.NewFormatter(format)
	return f, format, err
}

func newLogger(cfg *config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	l, err := logging.New(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Writer:    w,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return l.Slog(), nil
}
