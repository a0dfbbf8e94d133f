package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/journal"
	"mercator-hq/limitr/pkg/limits"
	"mercator-hq/limitr/pkg/maintenance"
	"mercator-hq/limitr/pkg/security/auth"
	limitrtls "mercator-hq/limitr/pkg/security/tls"
	"mercator-hq/limitr/pkg/server"
	"mercator-hq/limitr/pkg/telemetry/health"
	"mercator-hq/limitr/pkg/telemetry/metrics"
	"mercator-hq/limitr/pkg/telemetry/tracing"
)

// certExpiryWarning is how early the tls health check starts failing.
const certExpiryWarning = 7 * 24 * time.Hour

func newRunCmd(g *globalOptions) *cobra.Command {
	var (
		listenAddress string
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the limitr server",
		Long: `Start the limitr HTTP server with the configured limiters.

Examples:
  # Start with default config
  limitr run

  # Override listen address
  limitr run --config /etc/limitr/limitr.yaml --listen 0.0.0.0:8080

  # Validate config, build every limiter and load TLS and API keys without serving
  limitr run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if listenAddress != "" {
				cfg.Server.ListenAddress = listenAddress
			}

			if dryRun {
				if _, err := limits.NewManager(cfg.Limiters, limits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))); err != nil {
					return cli.NewConfigError("limiters", err.Error())
				}
				if _, err := limitrtls.ServerConfig(&cfg.Server.TLS); err != nil {
					return cli.NewConfigError("server.tls", err.Error())
				}
				if cfg.Server.Auth.Enabled {
					if _, err := auth.New(&cfg.Server.Auth, os.Getenv); err != nil {
						return cli.NewConfigError("server.auth", err.Error())
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d limiters)\n", len(cfg.Limiters))
				return nil
			}

			ctx, stop := cli.SetupSignalHandler(cmd.Context())
			defer stop()

			if err := serve(ctx, cfg, cmd.ErrOrStderr()); err != nil {
				return cli.NewCommandError("run", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

// serve wires every component from cfg and blocks until ctx is cancelled
// and the server has shut down.
func serve(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger, err := newLogger(&cfg.Telemetry.Logging, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	tracing.Version = Version
	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	managerOpts := []limits.ManagerOption{
		limits.WithMetrics(collector),
		limits.WithTracer(tracer),
		limits.WithLogger(logger),
	}

	var store journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(&cfg.Journal)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer store.Close()
		managerOpts = append(managerOpts, limits.WithJournal(store))
		logger.Info("decision journal enabled", "backend", store.Backend())
	}

	mgr, err := limits.NewManager(cfg.Limiters, managerOpts...)
	if err != nil {
		return err
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("limiters", func(ctx context.Context) error {
		if len(mgr.Names()) == 0 {
			return errors.New("no limiters configured")
		}
		return nil
	})
	if store != nil {
		checker.RegisterCheck("journal", store.Ping)
	}

	tlsCfg, err := limitrtls.ServerConfig(&cfg.Server.TLS)
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsCfg != nil && cfg.Server.TLS.Reload {
		reloader, err := limitrtls.NewCertificateReloader(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, logger)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		reloader.Apply(tlsCfg)
		if err := reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
	}
	if tlsCfg != nil {
		checker.RegisterCheck("tls", limitrtls.ExpiryCheck(tlsCfg, certExpiryWarning))
	}

	var authn auth.Authenticator
	if cfg.Server.Auth.Enabled {
		chain, err := auth.New(&cfg.Server.Auth, os.Getenv)
		if err != nil {
			return err
		}
		authn = chain
		logger.Info("authentication enabled",
			"api_keys", len(cfg.Server.Auth.Keys),
			"jwt", cfg.Server.Auth.JWT.Enabled,
		)
	}

	if cfg.Maintenance.Enabled {
		sched, err := newMaintenance(cfg, mgr, store, collector, logger)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv, err := server.NewServer(server.Options{
		Config:    cfg,
		Manager:   mgr,
		Journal:   store,
		Health:    checker,
		Metrics:   collector,
		Tracer:    tracer,
		TLSConfig: tlsCfg,
		Auth:      authn,
		Logger:    logger,
		BuildInfo: server.BuildInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		},
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// newMaintenance schedules window pruning and, with a journal, retention.
func newMaintenance(cfg *config.Config, mgr *limits.Manager, store journal.Store, rec journal.PruneRecorder, logger *slog.Logger) (*maintenance.Scheduler, error) {
	sched := maintenance.NewScheduler(logger)

	if err := sched.AddJob("windows", cfg.Maintenance.PruneSchedule, mgr.RunMaintenance); err != nil {
		return nil, err
	}

	if store != nil {
		pruner, err := journal.NewPruner(store, cfg.Journal.Retention.MaxAge,
			journal.WithPruneLogger(logger),
			journal.WithPruneRecorder(rec),
		)
		if err != nil {
			return nil, err
		}
		if err := sched.AddJob("journal-retention", cfg.Journal.Retention.Schedule, pruner.Run); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
