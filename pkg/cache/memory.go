package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store backed by a map.
type MemoryStore struct {
	opts options

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:    applyOptions(opts),
		entries: make(map[string]*Entry),
	}
}

// Get retrieves a live entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	now := s.opts.clock()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}

	if entry.IsExpiredAt(now) {
		if removed, _ := s.DeleteIfExpired(ctx, key, now); removed {
			Evictions.WithLabelValues("memory", "lazy").Inc()
		}
		return nil, ErrCacheMiss
	}

	return cloneEntry(entry), nil
}

// DeleteIfExpired removes key if the entry currently stored is expired at now.
func (s *MemoryStore) DeleteIfExpired(_ context.Context, key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[key]
	if !ok || !cur.IsExpiredAt(now) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Set stores payload under key for ttl.
func (s *MemoryStore) Set(_ context.Context, key, category string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	entry := newEntry(key, category, payload, s.opts.clock(), ttl)

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// ClearExpired removes entries whose expiry is at or before now.
func (s *MemoryStore) ClearExpired(_ context.Context) (int64, error) {
	now := s.opts.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, entry := range s.entries {
		if entry.IsExpiredAt(now) {
			delete(s.entries, key)
			removed++
		}
	}
	Evictions.WithLabelValues("memory", "sweep").Add(float64(removed))
	return removed, nil
}

// ClearAll removes every entry.
func (s *MemoryStore) ClearAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.entries))
	s.entries = make(map[string]*Entry)
	Evictions.WithLabelValues("memory", "clear").Add(float64(removed))
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func cloneEntry(in *Entry) *Entry {
	out := *in
	out.Payload = make([]byte, len(in.Payload))
	copy(out.Payload, in.Payload)
	return &out
}
