// Package ledger records one entry per cache-aside lookup and reports cache
// effectiveness over the recorded history.
package ledger

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Record is one observed lookup.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Endpoint  string    `json:"endpoint"`
	Actor     string    `json:"actor,omitempty"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarises the ledger.
type Stats struct {
	Total   int64   `json:"total_requests"`
	Hits    int64   `json:"cache_hits"`
	Misses  int64   `json:"cache_misses"`
	HitRate float64 `json:"cache_hit_rate"`
}

// NewStats derives misses and the hit rate (percent, two decimals, ties to
// even) from raw counts. The rate is 0 for an empty ledger.
func NewStats(total, hits int64) Stats {
	s := Stats{Total: total, Hits: hits, Misses: total - hits}
	if total > 0 {
		s.HitRate = math.RoundToEven(float64(hits)/float64(total)*100*100) / 100
	}
	return s
}
