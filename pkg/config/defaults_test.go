package config

import "testing"

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"server.listen_address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"server.read_timeout", cfg.Server.ReadTimeout, DefaultReadTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout},
		{"server.tls.min_version", cfg.Server.TLS.MinVersion, DefaultTLSMinVersion},
		{"maintenance.prune_schedule", cfg.Maintenance.PruneSchedule, DefaultPruneSchedule},
		{"journal.backend", cfg.Journal.Backend, DefaultJournalBackend},
		{"journal.max_records", cfg.Journal.MaxRecords, DefaultJournalMaxRecords},
		{"journal.sqlite.driver", cfg.Journal.SQLite.Driver, DefaultJournalDriver},
		{"journal.postgres.max_conns", cfg.Journal.Postgres.MaxConns, DefaultJournalPGMaxConns},
		{"journal.postgres.connect_timeout", cfg.Journal.Postgres.ConnectTimeout, DefaultJournalPGTimeout},
		{"journal.retention.max_age", cfg.Journal.Retention.MaxAge, DefaultRetentionMaxAge},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, DefaultLoggingLevel},
		{"telemetry.metrics.path", cfg.Telemetry.Metrics.Path, DefaultPrometheusPath},
		{"telemetry.health.path", cfg.Telemetry.Health.Path, DefaultHealthPath},
		{"telemetry.tracing.sampler", cfg.Telemetry.Tracing.Sampler, DefaultTracingSampler},
		{"telemetry.tracing.service_name", cfg.Telemetry.Tracing.ServiceName, DefaultTracingService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if cfg.Limiters == nil {
		t.Error("limiters map should be initialized")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ListenAddress = "10.0.0.1:1234"
	cfg.Journal.SQLite.Driver = "sqlite3"

	ApplyDefaults(cfg)
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "10.0.0.1:1234" {
		t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.Journal.SQLite.Driver != "sqlite3" {
		t.Errorf("driver overwritten: %q", cfg.Journal.SQLite.Driver)
	}
}

func TestNewDefaultConfig_Booleans(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Telemetry.Metrics.Enabled != DefaultMetricsEnabled {
		t.Error("metrics enabled default not applied")
	}
	if cfg.Maintenance.Enabled != DefaultMaintenanceEnabled {
		t.Error("maintenance enabled default not applied")
	}
	if cfg.Journal.Enabled != DefaultJournalEnabled {
		t.Error("journal enabled default not applied")
	}
}
