package config

import "time"

// Config is the root configuration structure for limitr.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Limiters maps a limiter name to its algorithm and parameters.
	// Names appear in URLs and metric labels.
	Limiters map[string]LimiterConfig `yaml:"limiters" toml:"limiters"`

	// Maintenance contains periodic housekeeping configuration.
	Maintenance MaintenanceConfig `yaml:"maintenance" toml:"maintenance"`

	// Journal contains configuration for the decision journal.
	Journal JournalConfig `yaml:"journal" toml:"journal"`

	// Telemetry contains logging, metrics and health configuration.
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address" toml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes" toml:"max_header_bytes"`

	// Limiter names a configured limiter that guards the API itself.
	// Every request under /v1/ consumes one unit from it. Empty disables.
	Limiter string `yaml:"limiter" toml:"limiter"`

	// TLS configures HTTPS termination.
	TLS TLSConfig `yaml:"tls" toml:"tls"`

	// Auth configures API key authentication of /v1/ requests.
	Auth AuthConfig `yaml:"auth" toml:"auth"`
}

// TLSConfig configures HTTPS for the server.
type TLSConfig struct {
	// Enabled switches the listener to TLS.
	// Default: false
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// CertFile and KeyFile are PEM-encoded certificate and private key paths.
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version" toml:"min_version"`

	// ClientCAFile enables mutual TLS: clients must present a certificate
	// signed by one of these CAs.
	ClientCAFile string `yaml:"client_ca_file" toml:"client_ca_file"`

	// Reload watches CertFile and KeyFile and serves the new pair after
	// they are replaced, without a restart.
	// Default: false
	Reload bool `yaml:"reload" toml:"reload"`
}

// AuthConfig configures authentication of /v1/ requests by API key,
// signed bearer token, or both.
type AuthConfig struct {
	// Enabled requires a valid API key or token on every /v1/ request.
	// Default: false
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Keys lists the accepted keys.
	Keys []APIKeyConfig `yaml:"keys" toml:"keys"`

	// JWT accepts HS256 bearer tokens issued by a trusted party.
	JWT JWTConfig `yaml:"jwt" toml:"jwt"`
}

// JWTConfig configures bearer token authentication. The token subject
// becomes the client ID.
type JWTConfig struct {
	// Enabled accepts signed tokens alongside any configured keys.
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Secret is the HMAC signing secret, at least 32 bytes.
	Secret string `yaml:"secret" toml:"secret"`

	// SecretEnv names an environment variable holding the secret.
	SecretEnv string `yaml:"secret_env" toml:"secret_env"`

	// Issuer, when set, must match the iss claim.
	Issuer string `yaml:"issuer" toml:"issuer"`

	// Audience, when set, must appear in the aud claim.
	Audience string `yaml:"audience" toml:"audience"`

	// Limiter is consumed once per request by every token holder. All
	// token holders share its budget.
	Limiter string `yaml:"limiter" toml:"limiter"`

	// Leeway tolerates clock skew when checking exp and nbf.
	// Default: 0
	Leeway time.Duration `yaml:"leeway" toml:"leeway"`
}

// APIKeyConfig describes one client's API key.
type APIKeyConfig struct {
	// Client identifies the key holder in logs.
	Client string `yaml:"client" toml:"client"`

	// Key is the literal key. Prefer KeyEnv outside of tests.
	Key string `yaml:"key" toml:"key"`

	// KeyEnv names an environment variable holding the key.
	KeyEnv string `yaml:"key_env" toml:"key_env"`

	// Limiter, when set, is consumed once per request by this client in
	// addition to the limiter named in the URL. Clients naming the same
	// limiter share its budget.
	Limiter string `yaml:"limiter" toml:"limiter"`

	// Disabled rejects the key without removing it.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// LimiterConfig describes a single named limiter.
//
// Token and leaky buckets use Capacity and Rate. Fixed and sliding windows
// use Limit and Window.
type LimiterConfig struct {
	// Algorithm is one of "token_bucket", "leaky_bucket", "fixed_window",
	// "sliding_window".
	Algorithm string `yaml:"algorithm" toml:"algorithm"`

	// Capacity is the bucket size (burst).
	Capacity uint64 `yaml:"capacity" toml:"capacity"`

	// Rate is the refill (token bucket) or leak (leaky bucket) rate per second.
	Rate uint64 `yaml:"rate" toml:"rate"`

	// Limit is the maximum number of requests per window.
	Limit uint64 `yaml:"limit" toml:"limit"`

	// Window is the window length, e.g. "10s" or "500ms".
	Window time.Duration `yaml:"window" toml:"window"`

	// SubSecondRefill enables fractional refill for buckets.
	// Default: false
	SubSecondRefill bool `yaml:"sub_second_refill" toml:"sub_second_refill"`
}

// MaintenanceConfig contains scheduled housekeeping configuration.
type MaintenanceConfig struct {
	// Enabled controls whether the maintenance scheduler runs.
	// Default: true
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// PruneSchedule is the cron expression for clearing stale fixed-window
	// counters. Accepts standard five-field cron or descriptors like "@every 1m".
	// Default: "@every 1m"
	PruneSchedule string `yaml:"prune_schedule" toml:"prune_schedule"`
}

// JournalConfig contains configuration for the decision journal.
type JournalConfig struct {
	// Enabled controls whether decisions are journaled.
	// Default: false
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Backend is "memory", "sqlite" or "postgres".
	// Default: "memory"
	Backend string `yaml:"backend" toml:"backend"`

	// MaxRecords bounds the memory backend. Oldest records are dropped first.
	// Default: 10000
	MaxRecords int `yaml:"max_records" toml:"max_records"`

	// SQLite contains SQLite-specific configuration.
	SQLite JournalSQLiteConfig `yaml:"sqlite" toml:"sqlite"`

	// Postgres contains PostgreSQL-specific configuration.
	Postgres JournalPostgresConfig `yaml:"postgres" toml:"postgres"`

	// Retention contains retention policy configuration.
	Retention RetentionConfig `yaml:"retention" toml:"retention"`
}

// JournalSQLiteConfig contains SQLite-specific configuration.
type JournalSQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/journal.db"
	Path string `yaml:"path" toml:"path"`

	// Driver selects the database/sql driver: "sqlite" (pure Go) or
	// "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver" toml:"driver"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" toml:"busy_timeout"`
}

// JournalPostgresConfig contains PostgreSQL-specific configuration.
// Several limitr instances may share one database.
type JournalPostgresConfig struct {
	// DSN is the connection string, e.g.
	// "postgres://limitr:secret@db:5432/limitr?sslmode=require".
	DSN string `yaml:"dsn" toml:"dsn"`

	// DSNEnv names an environment variable holding the DSN. Used when DSN
	// is empty so credentials stay out of the file.
	DSNEnv string `yaml:"dsn_env" toml:"dsn_env"`

	// MaxConns caps the connection pool.
	// Default: 4
	MaxConns int32 `yaml:"max_conns" toml:"max_conns"`

	// ConnectTimeout bounds the initial connection.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`
}

// RetentionConfig contains journal retention configuration.
type RetentionConfig struct {
	// MaxAge is how long records are kept.
	// Default: 168h
	MaxAge time.Duration `yaml:"max_age" toml:"max_age"`

	// Schedule is the cron expression for running the pruner.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule" toml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health" toml:"health"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" toml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format" toml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source" toml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" toml:"path"`

	// Namespace is the metric name prefix.
	// Default: "limitr"
	Namespace string `yaml:"namespace" toml:"namespace"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Path is the health endpoint path.
	// Default: "/health"
	Path string `yaml:"path" toml:"path"`

	// CheckTimeout is the timeout for individual component checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout" toml:"check_timeout"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Endpoint is the OTLP gRPC collector address (host:port).
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint" toml:"endpoint"`

	// Insecure disables TLS on the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure" toml:"insecure"`

	// Timeout bounds each export call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`

	// Sampler selects the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler" toml:"sampler"`

	// SampleRatio is the fraction of traces kept when Sampler is "ratio".
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "limitr"
	ServiceName string `yaml:"service_name" toml:"service_name"`
}
