// Package provider defines the upstream data sources a trip estimate is
// built from, and cache-aside decorators around them.
package provider

import (
	"context"
	"time"
)

// League is a football competition.
type League struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Team is a club playing in a league.
type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
	City string `json:"city,omitempty"`
}

// Match is an upcoming fixture seen from one team's perspective.
type Match struct {
	ID       int       `json:"id"`
	Date     time.Time `json:"date"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	Venue    string    `json:"venue"`
	City     string    `json:"city"`
	IsHome   bool      `json:"is_home"`
}

// Fixture is the full description of one match.
type Fixture struct {
	ID       int       `json:"id"`
	Date     time.Time `json:"date"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	Venue    string    `json:"venue"`
	City     string    `json:"city"`
	League   string    `json:"league"`
}

// Quote is a price for a flight or a hotel stay.
type Quote struct {
	Price float64 `json:"price"`

	// Link is a booking deep link; empty for estimates
	Link string `json:"link,omitempty"`

	// Estimated marks prices derived from static tables rather than a live offer
	Estimated bool `json:"estimated"`
}

// MatchType filters a team's fixtures by venue.
type MatchType string

const (
	MatchesAll  MatchType = "all"
	MatchesHome MatchType = "home"
	MatchesAway MatchType = "away"
)

// ParseMatchType returns the MatchType for s, defaulting to MatchesAll.
func ParseMatchType(s string) MatchType {
	switch MatchType(s) {
	case MatchesHome, MatchesAway:
		return MatchType(s)
	default:
		return MatchesAll
	}
}

// Fixtures supplies football data.
type Fixtures interface {
	FixtureDetails(ctx context.Context, fixtureID int) (*Fixture, error)
	TeamsByLeague(ctx context.Context, leagueID int) ([]Team, error)
	UpcomingMatches(ctx context.Context, teamID int, matchType MatchType) ([]Match, error)
}

// Flights supplies return-trip flight prices around a match date.
type Flights interface {
	FlightPrice(ctx context.Context, origin, destination string, date time.Time) (*Quote, error)
}

// Hotels supplies hotel prices for the stay around a match date.
type Hotels interface {
	HotelPrice(ctx context.Context, city string, date time.Time) (*Quote, error)
}
