package cacheaside

import "time"

// Category names an upstream operation class; each has its own TTL.
type Category string

const (
	CategoryTeams        Category = "teams"
	CategoryMatches      Category = "matches"
	CategoryMatchDetails Category = "match_details"
	CategoryFlight       Category = "flight"
	CategoryHotel        Category = "hotel"
)

// TTLs maps categories to entry lifetimes.
type TTLs map[Category]time.Duration

// DefaultTTLs returns the standard lifetimes: team rosters change weekly,
// fixtures daily, prices within hours.
func DefaultTTLs() TTLs {
	return TTLs{
		CategoryTeams:        168 * time.Hour,
		CategoryMatches:      24 * time.Hour,
		CategoryMatchDetails: 24 * time.Hour,
		CategoryFlight:       6 * time.Hour,
		CategoryHotel:        6 * time.Hour,
	}
}

// For returns the TTL for c, falling back to the default table and then to
// one hour for unknown categories.
func (t TTLs) For(c Category) time.Duration {
	if d, ok := t[c]; ok && d > 0 {
		return d
	}
	if d, ok := DefaultTTLs()[c]; ok {
		return d
	}
	return time.Hour
}
