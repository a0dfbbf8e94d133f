package journal

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxRecords bounds a MemoryStore created with a non-positive size.
const DefaultMaxRecords = 10000

// MemoryStore keeps the most recent records in a ring buffer. When full,
// the oldest record is overwritten.
type MemoryStore struct {
	mu sync.RWMutex
	// records grows up to maxRecords and then wraps; head is the index of
	// the oldest record and is zero until the first wrap.
	records    []Record
	head       int
	maxRecords int
	closed     bool
	now        func() time.Time
}

// NewMemoryStore creates a store holding at most maxRecords records.
func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &MemoryStore{
		records:    make([]Record, 0, min(maxRecords, 1024)),
		maxRecords: maxRecords,
		now:        time.Now,
	}
}

// at returns the i-th record counting from the oldest.
// Caller must hold lock.
func (s *MemoryStore) at(i int) *Record {
	return &s.records[(s.head+i)%len(s.records)]
}

// Append stores rec, overwriting the oldest record if the store is full.
func (s *MemoryStore) Append(ctx context.Context, rec *Record) error {
	if err := prepare(rec, s.now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if len(s.records) < s.maxRecords {
		s.records = append(s.records, *rec)
		return nil
	}
	s.records[s.head] = *rec
	s.head = (s.head + 1) % len(s.records)
	return nil
}

// Query returns matching records, newest first.
func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.at(i)
		if !f.Matches(r) {
			continue
		}
		out = append(out, *r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of matching records.
func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int64
	for i := range s.records {
		if f.Matches(&s.records[i]) {
			n++
		}
	}
	return n, nil
}

// DeleteBefore removes records with a timestamp before t. The survivors
// are compacted oldest first, which resets the ring.
func (s *MemoryStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	kept := make([]Record, 0, cap(s.records))
	for i := range s.records {
		if r := s.at(i); !r.Timestamp.Before(t) {
			kept = append(kept, *r)
		}
	}
	removed := int64(len(s.records) - len(kept))
	s.records = kept
	s.head = 0
	return removed, nil
}

// Ping fails only once the store is closed.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Backend returns "memory".
func (s *MemoryStore) Backend() string { return "memory" }

// Close drops all records.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.records = nil
	s.head = 0
	return nil
}
