// Package trip aggregates fixture, flight, hotel and ticket prices into a
// matchday trip estimate.
package trip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/tripcost/pkg/ledger"
	"github.com/Sternrassler/tripcost/pkg/logging"
	"github.com/Sternrassler/tripcost/pkg/provider"
)

var (
	// ErrInvalidArgument is returned for a non-positive fixture ID or a blank origin.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when the fixture cannot be resolved.
	ErrNotFound = errors.New("fixture not found")

	// ErrUnauthenticated is returned when an actor is required and the
	// context carries none.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Costs are in EUR.
type Costs struct {
	Flight float64 `json:"flight"`
	Hotel  float64 `json:"hotel"`
	Ticket float64 `json:"ticket"`
	Total  float64 `json:"total"`
}

// Links are booking deep links for live quotes.
type Links struct {
	Flight string `json:"flight,omitempty"`
	Hotel  string `json:"hotel,omitempty"`
}

// Result is a trip estimate.
type Result struct {
	Fixture  provider.Fixture `json:"match"`
	Costs    Costs            `json:"costs"`
	Links    Links            `json:"links"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Calculator builds trip estimates. The sources are expected to be the
// cache-aside decorators from package provider.
type Calculator struct {
	fixtures     provider.Fixtures
	flights      provider.Flights
	hotels       provider.Hotels
	pricing      *Pricing
	requireActor bool
	logger       zerolog.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithPricing replaces the default ticket tables.
func WithPricing(p *Pricing) Option {
	return func(c *Calculator) { c.pricing = p }
}

// WithRequireActor makes Calculate fail with ErrUnauthenticated when the
// context has no actor.
func WithRequireActor(required bool) Option {
	return func(c *Calculator) { c.requireActor = required }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Calculator) { c.logger = l }
}

// NewCalculator creates a Calculator.
func NewCalculator(fixtures provider.Fixtures, flights provider.Flights, hotels provider.Hotels, opts ...Option) *Calculator {
	c := &Calculator{
		fixtures: fixtures,
		flights:  flights,
		hotels:   hotels,
		pricing:  DefaultPricing(),
		logger:   logging.NewLogger("trip"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pricing returns the ticket tables in use.
func (c *Calculator) Pricing() *Pricing {
	return c.pricing
}

// Calculate estimates the cost of travelling from origin to the fixture.
func (c *Calculator) Calculate(ctx context.Context, fixtureID int, origin string) (*Result, error) {
	origin = strings.TrimSpace(origin)
	if fixtureID <= 0 {
		return nil, fmt.Errorf("%w: fixture id must be positive, got %d", ErrInvalidArgument, fixtureID)
	}
	if origin == "" {
		return nil, fmt.Errorf("%w: origin city is required", ErrInvalidArgument)
	}
	if c.requireActor && ledger.ActorFrom(ctx) == "" {
		return nil, ErrUnauthenticated
	}

	fixture, err := c.fixtures.FixtureDetails(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("fixture %d: %w", fixtureID, err)
	}
	if fixture == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, fixtureID)
	}

	var flight, hotel *provider.Quote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := c.flights.FlightPrice(gctx, origin, fixture.City, fixture.Date)
		if err != nil {
			return fmt.Errorf("flight price: %w", err)
		}
		flight = q
		return nil
	})
	g.Go(func() error {
		q, err := c.hotels.HotelPrice(gctx, fixture.City, fixture.Date)
		if err != nil {
			return fmt.Errorf("hotel price: %w", err)
		}
		hotel = q
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Fixture: *fixture}
	res.Costs.Ticket = c.pricing.Estimate(fixture.League, fixture.HomeTeam, fixture.AwayTeam)
	res.Costs.Flight, res.Links.Flight = c.quoted(res, "flight", flight)
	res.Costs.Hotel, res.Links.Hotel = c.quoted(res, "hotel", hotel)
	res.Costs.Total = res.Costs.Flight + res.Costs.Hotel + res.Costs.Ticket

	c.logger.Debug().
		Int("fixture_id", fixtureID).
		Str("origin", origin).
		Str("city", fixture.City).
		Float64("total", res.Costs.Total).
		Dur("lead_time", time.Until(fixture.Date)).
		Msg("Trip calculated")

	return res, nil
}

// quoted extracts price and link from q. A missing quote costs 0 and adds a
// warning; estimates carry no link.
func (c *Calculator) quoted(res *Result, what string, q *provider.Quote) (float64, string) {
	if q == nil || q.Price <= 0 {
		res.Warnings = append(res.Warnings, what+" price unavailable")
		c.logger.Warn().Int("fixture_id", res.Fixture.ID).Str("quote", what).Msg("Quote unavailable")
		return 0, ""
	}
	if q.Estimated {
		return q.Price, ""
	}
	return q.Price, q.Link
}

// TicketTotal prices a fixture described by hand: the ticket estimate plus
// caller-supplied flight and hotel costs.
func (c *Calculator) TicketTotal(league, home, away string, flight, hotel float64) (ticket, total float64) {
	ticket = c.pricing.Estimate(league, home, away)
	return ticket, flight + hotel + ticket
}
