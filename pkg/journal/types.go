package journal

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("journal: store is closed")

	// ErrInvalidRecord is returned when a record lacks a limiter name.
	ErrInvalidRecord = errors.New("journal: invalid record")
)

// Record is one journaled limiter decision.
type Record struct {
	// ID uniquely identifies the record. Assigned on append when empty.
	ID string `json:"id" yaml:"id"`

	// Limiter is the configured limiter name.
	Limiter string `json:"limiter" yaml:"limiter"`

	// Algorithm is the limiter's algorithm.
	Algorithm string `json:"algorithm" yaml:"algorithm"`

	// Allowed reports whether the request was admitted.
	Allowed bool `json:"allowed" yaml:"allowed"`

	// Cost is the number of units requested.
	Cost uint64 `json:"cost" yaml:"cost"`

	// Remaining is the limiter's remaining capacity after the decision.
	Remaining uint64 `json:"remaining" yaml:"remaining"`

	// RequestID correlates the record with an HTTP request, if any.
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`

	// Timestamp is when the decision was taken. Assigned on append when zero.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	// Limiter restricts results to one limiter.
	Limiter string

	// Allowed restricts results to admitted (true) or denied (false) decisions.
	Allowed *bool

	// Since and Until bound the timestamp, inclusive and exclusive respectively.
	Since time.Time
	Until time.Time

	// Limit caps the number of records returned by Query. Zero means no cap.
	Limit int
}

// Matches reports whether r satisfies the filter, ignoring Limit.
func (f Filter) Matches(r *Record) bool {
	if f.Limiter != "" && r.Limiter != f.Limiter {
		return false
	}
	if f.Allowed != nil && r.Allowed != *f.Allowed {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Store persists decision records.
type Store interface {
	// Append stores a record, filling ID and Timestamp when unset.
	Append(ctx context.Context, rec *Record) error

	// Query returns matching records, newest first.
	Query(ctx context.Context, f Filter) ([]Record, error)

	// Count returns the number of matching records, ignoring f.Limit.
	Count(ctx context.Context, f Filter) (int64, error)

	// DeleteBefore removes records older than t and returns how many were removed.
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)

	// Ping reports whether the store is usable.
	Ping(ctx context.Context) error

	// Backend names the implementation, e.g. "memory" or "sqlite".
	Backend() string

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

// prepare validates rec and fills its ID and Timestamp.
func prepare(rec *Record, now func() time.Time) error {
	if rec == nil || rec.Limiter == "" {
		return ErrInvalidRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now()
	}
	return nil
}

// SQLite integers are signed; larger counters are stored saturated.
func toInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
