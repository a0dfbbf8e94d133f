package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/limitr/pkg/limits/ratelimit"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// limiterNamePattern restricts names to what is safe in a URL path segment
// and a Prometheus label value.
var limiterNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLimiters(cfg.Limiters)...)
	if name := cfg.Server.Limiter; name != "" {
		if _, ok := cfg.Limiters[name]; !ok {
			errs = append(errs, FieldError{
				Field:   "server.limiter",
				Message: fmt.Sprintf("limiter %q is not configured", name),
			})
		}
	}
	errs = append(errs, validateAuth(&cfg.Server.Auth, cfg.Limiters)...)
	errs = append(errs, validateMaintenance(&cfg.Maintenance)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "certificate file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "key file is required when TLS is enabled",
			})
		}
		switch cfg.TLS.MinVersion {
		case "1.2", "1.3":
		default:
			errs = append(errs, FieldError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", cfg.TLS.MinVersion),
			})
		}
	}

	return errs
}

// validateAuth validates API key configuration. Client limiters must name
// configured limiters.
func validateAuth(cfg *AuthConfig, limiters map[string]LimiterConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if len(cfg.Keys) == 0 && !cfg.JWT.Enabled {
		errs = append(errs, FieldError{
			Field:   "server.auth.keys",
			Message: "at least one key or jwt is required when auth is enabled",
		})
	}

	seen := make(map[string]bool, len(cfg.Keys))
	for i, k := range cfg.Keys {
		prefix := fmt.Sprintf("server.auth.keys[%d]", i)
		if k.Client == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".client",
				Message: "client is required",
			})
		} else if seen[k.Client] {
			errs = append(errs, FieldError{
				Field:   prefix + ".client",
				Message: fmt.Sprintf("duplicate client %q", k.Client),
			})
		}
		seen[k.Client] = true

		if (k.Key == "") == (k.KeyEnv == "") {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "exactly one of key or key_env must be set",
			})
		}
		if k.Limiter != "" {
			if _, ok := limiters[k.Limiter]; !ok {
				errs = append(errs, FieldError{
					Field:   prefix + ".limiter",
					Message: fmt.Sprintf("limiter %q is not configured", k.Limiter),
				})
			}
		}
	}

	if jwt := cfg.JWT; jwt.Enabled {
		if (jwt.Secret == "") == (jwt.SecretEnv == "") {
			errs = append(errs, FieldError{
				Field:   "server.auth.jwt",
				Message: "exactly one of secret or secret_env must be set",
			})
		}
		if jwt.Secret != "" && len(jwt.Secret) < MinJWTSecretLength {
			errs = append(errs, FieldError{
				Field:   "server.auth.jwt.secret",
				Message: fmt.Sprintf("secret must be at least %d bytes", MinJWTSecretLength),
			})
		}
		if jwt.Leeway < 0 {
			errs = append(errs, FieldError{
				Field:   "server.auth.jwt.leeway",
				Message: "leeway must be non-negative",
			})
		}
		if jwt.Limiter != "" {
			if _, ok := limiters[jwt.Limiter]; !ok {
				errs = append(errs, FieldError{
					Field:   "server.auth.jwt.limiter",
					Message: fmt.Sprintf("limiter %q is not configured", jwt.Limiter),
				})
			}
		}
	}

	return errs
}

// validateLimiters validates every named limiter. Names are visited in
// sorted order so error output is stable.
func validateLimiters(limiters map[string]LimiterConfig) []FieldError {
	var errs []FieldError

	if len(limiters) == 0 {
		errs = append(errs, FieldError{
			Field:   "limiters",
			Message: "at least one limiter must be configured",
		})
		return errs
	}

	names := make([]string, 0, len(limiters))
	for name := range limiters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		errs = append(errs, ValidateLimiter(name, limiters[name])...)
	}

	return errs
}

// ValidateLimiter checks a single limiter definition.
func ValidateLimiter(name string, lc LimiterConfig) []FieldError {
	var errs []FieldError
	prefix := "limiters." + name

	if !limiterNamePattern.MatchString(name) {
		errs = append(errs, FieldError{
			Field:   prefix,
			Message: fmt.Sprintf("invalid limiter name %q: use letters, digits, '.', '_' or '-'", name),
		})
	}

	algo, err := ratelimit.ParseAlgorithm(lc.Algorithm)
	if err != nil {
		errs = append(errs, FieldError{
			Field:   prefix + ".algorithm",
			Message: fmt.Sprintf("invalid algorithm %q: must be one of %s", lc.Algorithm, algorithmList()),
		})
		return errs
	}

	switch algo {
	case ratelimit.AlgorithmTokenBucket, ratelimit.AlgorithmLeakyBucket:
		if lc.Capacity == 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".capacity",
				Message: "capacity must be greater than zero",
			})
		}
		if lc.Rate == 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".rate",
				Message: "rate must be greater than zero",
			})
		}
	case ratelimit.AlgorithmFixedWindow, ratelimit.AlgorithmSlidingWindow:
		if lc.Limit == 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".limit",
				Message: "limit must be greater than zero",
			})
		}
		if lc.Window <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".window",
				Message: "window must be a positive duration",
			})
		}
		if lc.SubSecondRefill {
			errs = append(errs, FieldError{
				Field:   prefix + ".sub_second_refill",
				Message: "sub-second refill only applies to bucket algorithms",
			})
		}
	}

	return errs
}

// validateMaintenance validates scheduler configuration.
func validateMaintenance(cfg *MaintenanceConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if err := validateSchedule(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "maintenance.prune_schedule",
			Message: err.Error(),
		})
	}

	return errs
}

// validateJournal validates journal configuration.
func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	validBackends := map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	if !validBackends[cfg.Backend] {
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite' or 'postgres'", cfg.Backend),
		})
	}

	switch cfg.Backend {
	case "memory":
		if cfg.MaxRecords < 0 {
			errs = append(errs, FieldError{
				Field:   "journal.max_records",
				Message: "max records must be non-negative",
			})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
		validDrivers := map[string]bool{"sqlite": true, "sqlite3": true}
		if !validDrivers[cfg.SQLite.Driver] {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.busy_timeout",
				Message: "busy timeout must be positive",
			})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" && cfg.Postgres.DSNEnv == "" {
			errs = append(errs, FieldError{
				Field:   "journal.postgres.dsn",
				Message: "dsn or dsn_env is required when backend is 'postgres'",
			})
		}
		if cfg.Postgres.MaxConns < 0 {
			errs = append(errs, FieldError{
				Field:   "journal.postgres.max_conns",
				Message: "max conns must be positive",
			})
		}
		if cfg.Postgres.ConnectTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "journal.postgres.connect_timeout",
				Message: "connect timeout must be positive",
			})
		}
	}

	if cfg.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention.max_age",
			Message: "max age must be positive",
		})
	}
	if err := validateSchedule(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "journal.retention.schedule",
			Message: err.Error(),
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	if !strings.HasPrefix(cfg.Health.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.path",
			Message: "health path must start with '/'",
		})
	}
	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}

func validateSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %v", schedule, err)
	}
	return nil
}

func algorithmList() string {
	algos := ratelimit.Algorithms()
	names := make([]string, len(algos))
	for i, a := range algos {
		names[i] = "'" + a.String() + "'"
	}
	return strings.Join(names, ", ")
}
