package journal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BackendPostgres is the Backend name of a PostgresStore.
const BackendPostgres = "postgres"

// PostgresConfig configures a PostgresStore.
type PostgresConfig struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string

	// MaxConns caps the connection pool.
	// Default: 4
	MaxConns int32

	// ConnectTimeout bounds the initial connection and schema setup.
	// Default: 10 seconds
	ConnectTimeout time.Duration
}

// PostgresStore persists records in a PostgreSQL table shared by every
// limitr instance pointing at the same database.
type PostgresStore struct {
	pool      *pgxpool.Pool
	closeOnce sync.Once
	closed    chan struct{}
	now       func() time.Time
}

// NewPostgresStore connects to cfg.DSN and creates the decisions table if
// needed.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
	if cfg.MaxConns < 0 {
		return nil, fmt.Errorf("postgres max conns must be positive, got %d", cfg.MaxConns)
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		closed: make(chan struct{}),
		now:    time.Now,
	}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS limitr_decisions (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		limiter TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		allowed BOOLEAN NOT NULL,
		cost BIGINT NOT NULL,
		remaining BIGINT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		ts BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_limitr_decisions_ts ON limitr_decisions(ts);
	CREATE INDEX IF NOT EXISTS idx_limitr_decisions_limiter_ts ON limitr_decisions(limiter, ts);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func (s *PostgresStore) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Append inserts rec.
func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	if err := prepare(rec, s.now); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO limitr_decisions (id, limiter, algorithm, allowed, cost, remaining, request_id, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID,
		rec.Limiter,
		rec.Algorithm,
		rec.Allowed,
		toInt64(rec.Cost),
		toInt64(rec.Remaining),
		rec.RequestID,
		rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Query returns matching records, newest first.
func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	clause, args := where(f, dollar, unixNano)
	query := "SELECT id, limiter, algorithm, allowed, cost, remaining, request_id, ts FROM limitr_decisions" +
		clause + " ORDER BY ts DESC, seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT " + dollar(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r               Record
			cost, remaining int64
			ts              int64
		)
		if err := rows.Scan(&r.ID, &r.Limiter, &r.Algorithm, &r.Allowed, &cost, &remaining, &r.RequestID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Cost = uint64(cost)
		r.Remaining = uint64(remaining)
		r.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}

// Count returns the number of matching records.
func (s *PostgresStore) Count(ctx context.Context, f Filter) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	clause, args := where(f, dollar, unixNano)
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM limitr_decisions"+clause, args...).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// DeleteBefore removes records with a timestamp before t.
func (s *PostgresStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM limitr_decisions WHERE ts < $1", t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.pool.Ping(ctx)
}

// Backend returns "postgres".
func (s *PostgresStore) Backend() string { return BackendPostgres }

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		close(s.closed)
		s.pool.Close()
		err = nil
	})
	return err
}
