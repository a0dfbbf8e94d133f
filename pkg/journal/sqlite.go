package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// Supported database/sql driver names.
const (
	DriverSQLite  = "sqlite"
	DriverSQLite3 = "sqlite3"
)

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// Path is the database file. Parent directories are created.
	Path string

	// Driver is DriverSQLite or DriverSQLite3.
	// Default: DriverSQLite
	Driver string

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore persists records in a SQLite database running in WAL mode.
type SQLiteStore struct {
	db        *sql.DB
	driver    string
	closeOnce sync.Once
	closed    chan struct{}
	now       func() time.Time

	appendStmt *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		driver: cfg.Driver,
		closed: make(chan struct{}),
		now:    time.Now,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return s, nil
}

// buildDSN encodes WAL mode and the busy timeout in each driver's syntax.
func buildDSN(cfg SQLiteConfig) (string, error) {
	ms := cfg.BusyTimeout.Milliseconds()
	switch cfg.Driver {
	case DriverSQLite:
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
			cfg.Path, ms), nil
	case DriverSQLite3:
		return fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", cfg.Path, ms), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q (valid: %s, %s)", cfg.Driver, DriverSQLite, DriverSQLite3)
	}
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		limiter TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		allowed INTEGER NOT NULL,
		cost INTEGER NOT NULL,
		remaining INTEGER NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts);
	CREATE INDEX IF NOT EXISTS idx_decisions_limiter_ts ON decisions(limiter, ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.appendStmt, err = s.db.Prepare(`
		INSERT INTO decisions (id, limiter, algorithm, allowed, cost, remaining, request_id, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM decisions WHERE ts < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

func (s *SQLiteStore) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Append inserts rec.
func (s *SQLiteStore) Append(ctx context.Context, rec *Record) error {
	if err := prepare(rec, s.now); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	_, err := s.appendStmt.ExecContext(ctx,
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

// placeholder renders the n-th (1-based) bind parameter of a dialect.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

// where renders f as a WHERE clause and its arguments. Timestamps are bound
// through ts, which converts them to the column's representation.
func where(f Filter, ph placeholder, ts func(time.Time) any) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+" "+ph(len(args)))
	}
	if f.Limiter != "" {
		add("limiter =", f.Limiter)
	}
	if f.Allowed != nil {
		add("allowed =", *f.Allowed)
	}
	if !f.Since.IsZero() {
		add("ts >=", ts(f.Since))
	}
	if !f.Until.IsZero() {
		add("ts <", ts(f.Until))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func unixNano(t time.Time) any { return t.UnixNano() }

// Query returns matching records, newest first.
func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	clause, args := where(f, questionMark, unixNano)
	query := "SELECT id, limiter, algorithm, allowed, cost, remaining, request_id, ts FROM decisions" +
		clause + " ORDER BY ts DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) Count(ctx context.Context, f Filter) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	clause, args := where(f, questionMark, unixNano)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions"+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// DeleteBefore removes records with a timestamp before t.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	res, err := s.deleteStmt.ExecContext(ctx, t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Backend returns "sqlite" or "sqlite3" depending on the driver in use.
func (s *SQLiteStore) Backend() string { return s.driver }

// Close finalizes statements and closes the database.
func (s *SQLiteStore) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.appendStmt != nil {
			s.appendStmt.Close()
		}
		if s.deleteStmt != nil {
			s.deleteStmt.Close()
		}
		err = s.db.Close()
	})
	return err
}
