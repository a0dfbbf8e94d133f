// Package config provides configuration management for limitr.
//
// This package loads a YAML or TOML file, fills in defaults, applies
// environment variable overrides and validates the result. Limiter definitions are read
// once at startup.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("limitr.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("limitr.yaml")
//
// A path ending in .toml is decoded as TOML using the same key names.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention LIMITR_SECTION_FIELD.
// For example:
//
//   - LIMITR_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - LIMITR_JOURNAL_SQLITE_DRIVER overrides journal.sqlite.driver
//   - LIMITR_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Limiter definitions have no environment overrides.
//
// LoadEnvFiles reads dotenv files into the process environment first, so
// overrides and secret references (key_env, secret_env, dsn_env) can live in
// a .env file next to the config.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation collects every problem before failing:
//
//	configuration validation failed with 2 errors:
//	  - limiters.api.rate: rate must be greater than zero
//	  - journal.sqlite.driver: invalid driver "pg": must be 'sqlite' or 'sqlite3'
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	limiters:
//	  api:
//	    algorithm: token_bucket
//	    capacity: 10
//	    rate: 2
//	  login:
//	    algorithm: sliding_window
//	    limit: 5
//	    window: 1m
//
//	journal:
//	  enabled: true
//	  backend: sqlite
//	  sqlite:
//	    path: data/journal.db
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
