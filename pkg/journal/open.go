package journal

import (
	"context"
	"fmt"
	"os"

	"mercator-hq/limitr/pkg/config"
)

// Open creates the store selected by cfg.Backend.
func Open(cfg *config.JournalConfig) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(cfg.MaxRecords), nil
	case "sqlite":
		return NewSQLiteStore(SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	case BackendPostgres:
		dsn := cfg.Postgres.DSN
		if dsn == "" && cfg.Postgres.DSNEnv != "" {
			dsn = os.Getenv(cfg.Postgres.DSNEnv)
			if dsn == "" {
				return nil, fmt.Errorf("postgres dsn environment variable %s is not set", cfg.Postgres.DSNEnv)
			}
		}
		return NewPostgresStore(context.Background(), PostgresConfig{
			DSN:            dsn,
			MaxConns:       cfg.Postgres.MaxConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}
