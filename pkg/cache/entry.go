package cache

import (
	"time"
)

// Entry is a cached upstream result.
type Entry struct {
	// Key is the canonical cache key (see Key.String)
	Key string `json:"key"`

	// Category groups entries by upstream operation (teams, flight, ...)
	Category string `json:"category"`

	// Payload is the encoded result
	Payload []byte `json:"payload"`

	// CreatedAt is when the entry was last written
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the instant from which the entry is no longer served
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpiredAt reports whether the entry is stale at now.
// An entry is live strictly before ExpiresAt.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTLAt returns the remaining lifetime at now.
// Returns 0 if already expired.
func (e *Entry) TTLAt(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

func newEntry(key, category string, payload []byte, now time.Time, ttl time.Duration) *Entry {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return &Entry{
		Key:       key,
		Category:  category,
		Payload:   buf,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
