package ledger

import (
	"context"
	"sync"
)

// MemorySink keeps records in process memory.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores rec.
func (s *MemorySink) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

// Counts returns the number of records and how many were hits.
func (s *MemorySink) Counts(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits int64
	for _, r := range s.records {
		if r.CacheHit {
			hits++
		}
	}
	return int64(len(s.records)), hits, nil
}

// Records returns a copy of everything appended so far.
func (s *MemorySink) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
