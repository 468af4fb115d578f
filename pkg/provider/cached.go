package provider

import (
	"context"
	"time"

	"github.com/Sternrassler/tripcost/pkg/cache"
	"github.com/Sternrassler/tripcost/pkg/cacheaside"
)

// Ledger endpoint names of the wrapped operations.
const (
	OpTeams        = "get_teams"
	OpMatches      = "get_matches"
	OpMatchDetails = "get_match_details"
	OpFlightPrice  = "get_flight_price"
	OpHotelPrice   = "get_hotel_price"
)

const keyDateLayout = "2006-01-02"

type matchesParams struct {
	teamID    int
	matchType MatchType
}

type flightParams struct {
	origin      string
	destination string
	date        time.Time
}

type hotelParams struct {
	city string
	date time.Time
}

// CachedFixtures decorates a Fixtures source with cache-aside lookups.
// Upstream failures are absorbed: the methods never return an error, and a
// missing fixture is reported as nil.
type CachedFixtures struct {
	details *cacheaside.Aside[int, *Fixture]
	teams   *cacheaside.Aside[int, []Team]
	matches *cacheaside.Aside[matchesParams, []Match]
}

// NewCachedFixtures wraps inner.
func NewCachedFixtures(inner Fixtures, opts cacheaside.Options) *CachedFixtures {
	return &CachedFixtures{
		details: cacheaside.New(opts,
			cacheaside.Config[int, *Fixture]{
				Name:     OpMatchDetails,
				Category: cacheaside.CategoryMatchDetails,
				Key:      func(id int) cache.Key { return cache.NewKey("match_details", id) },
				Empty:    func(f *Fixture) bool { return f == nil },
			},
			inner.FixtureDetails,
		),
		teams: cacheaside.New(opts,
			cacheaside.Config[int, []Team]{
				Name:     OpTeams,
				Category: cacheaside.CategoryTeams,
				Key:      func(id int) cache.Key { return cache.NewKey("teams_league", id) },
				Empty:    func(v []Team) bool { return len(v) == 0 },
			},
			inner.TeamsByLeague,
		),
		matches: cacheaside.New(opts,
			cacheaside.Config[matchesParams, []Match]{
				Name:     OpMatches,
				Category: cacheaside.CategoryMatches,
				Key: func(p matchesParams) cache.Key {
					return cache.NewKey("matches", p.teamID, string(p.matchType))
				},
				Empty: func(v []Match) bool { return len(v) == 0 },
			},
			func(ctx context.Context, p matchesParams) ([]Match, error) {
				return inner.UpcomingMatches(ctx, p.teamID, p.matchType)
			},
		),
	}
}

// FixtureDetails returns the fixture or nil when unavailable.
func (c *CachedFixtures) FixtureDetails(ctx context.Context, fixtureID int) (*Fixture, error) {
	f, _ := c.details.Get(ctx, fixtureID)
	return f, nil
}

// TeamsByLeague returns the league's teams or an empty slice.
func (c *CachedFixtures) TeamsByLeague(ctx context.Context, leagueID int) ([]Team, error) {
	teams, _ := c.teams.Get(ctx, leagueID)
	return teams, nil
}

// UpcomingMatches returns the team's fixtures or an empty slice.
func (c *CachedFixtures) UpcomingMatches(ctx context.Context, teamID int, matchType MatchType) ([]Match, error) {
	matches, _ := c.matches.Get(ctx, matchesParams{teamID: teamID, matchType: matchType})
	return matches, nil
}

// CachedFlights decorates a Flights source with cache-aside lookups.
type CachedFlights struct {
	aside *cacheaside.Aside[flightParams, *Quote]
}

// NewCachedFlights wraps inner.
func NewCachedFlights(inner Flights, opts cacheaside.Options) *CachedFlights {
	return &CachedFlights{
		aside: cacheaside.New(opts,
			cacheaside.Config[flightParams, *Quote]{
				Name:     OpFlightPrice,
				Category: cacheaside.CategoryFlight,
				Key: func(p flightParams) cache.Key {
					return cache.NewKey("flight", p.origin, p.destination, p.date.Format(keyDateLayout))
				},
				Empty: emptyQuote,
			},
			func(ctx context.Context, p flightParams) (*Quote, error) {
				return inner.FlightPrice(ctx, p.origin, p.destination, p.date)
			},
		),
	}
}

// FlightPrice returns a quote or nil when unavailable.
func (c *CachedFlights) FlightPrice(ctx context.Context, origin, destination string, date time.Time) (*Quote, error) {
	q, _ := c.aside.Get(ctx, flightParams{origin: origin, destination: destination, date: date})
	return q, nil
}

// CachedHotels decorates a Hotels source with cache-aside lookups.
type CachedHotels struct {
	aside *cacheaside.Aside[hotelParams, *Quote]
}

// NewCachedHotels wraps inner.
func NewCachedHotels(inner Hotels, opts cacheaside.Options) *CachedHotels {
	return &CachedHotels{
		aside: cacheaside.New(opts,
			cacheaside.Config[hotelParams, *Quote]{
				Name:     OpHotelPrice,
				Category: cacheaside.CategoryHotel,
				Key: func(p hotelParams) cache.Key {
					return cache.NewKey("hotel", p.city, p.date.Format(keyDateLayout))
				},
				Empty: emptyQuote,
			},
			func(ctx context.Context, p hotelParams) (*Quote, error) {
				return inner.HotelPrice(ctx, p.city, p.date)
			},
		),
	}
}

// HotelPrice returns a quote or nil when unavailable.
func (c *CachedHotels) HotelPrice(ctx context.Context, city string, date time.Time) (*Quote, error) {
	q, _ := c.aside.Get(ctx, hotelParams{city: city, date: date})
	return q, nil
}

func emptyQuote(q *Quote) bool {
	return q == nil || q.Price <= 0 || q.Estimated
}
