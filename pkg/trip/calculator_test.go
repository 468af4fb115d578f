package trip

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/tripcost/pkg/cache"
	"github.com/Sternrassler/tripcost/pkg/cacheaside"
	"github.com/Sternrassler/tripcost/pkg/ledger"
	"github.com/Sternrassler/tripcost/pkg/provider"
)

var manchesterDerby = &provider.Fixture{
	ID:       868012,
	Date:     time.Date(2024, 3, 3, 15, 30, 0, 0, time.UTC),
	HomeTeam: "Manchester City",
	AwayTeam: "Manchester United",
	Venue:    "Etihad Stadium",
	City:     "Manchester",
	League:   "Premier League",
}

type fakeFixtures struct {
	calls   atomic.Int32
	fixture *provider.Fixture
	err     error
}

func (f *fakeFixtures) FixtureDetails(context.Context, int) (*provider.Fixture, error) {
	f.calls.Add(1)
	return f.fixture, f.err
}

func (f *fakeFixtures) TeamsByLeague(context.Context, int) ([]provider.Team, error) {
	return nil, nil
}

func (f *fakeFixtures) UpcomingMatches(context.Context, int, provider.MatchType) ([]provider.Match, error) {
	return nil, nil
}

type fakeFlights struct {
	calls              atomic.Int32
	quote              *provider.Quote
	gotOrigin, gotDest string
	gotDate            time.Time
}

func (f *fakeFlights) FlightPrice(_ context.Context, origin, dest string, date time.Time) (*provider.Quote, error) {
	f.calls.Add(1)
	f.gotOrigin, f.gotDest, f.gotDate = origin, dest, date
	return f.quote, nil
}

type fakeHotels struct {
	calls   atomic.Int32
	quote   *provider.Quote
	err     error
	gotCity string
}

func (f *fakeHotels) HotelPrice(_ context.Context, city string, _ time.Time) (*provider.Quote, error) {
	f.calls.Add(1)
	f.gotCity = city
	return f.quote, f.err
}

func TestCalculate_EndToEnd(t *testing.T) {
	fixtures := &fakeFixtures{fixture: manchesterDerby}
	flights := &fakeFlights{quote: &provider.Quote{Price: 200, Link: "https://flights.example/lon-man"}}
	hotels := &fakeHotels{quote: &provider.Quote{Price: 150, Link: "https://hotels.example/man"}}

	res, err := NewCalculator(fixtures, flights, hotels).Calculate(context.Background(), 868012, "London")
	require.NoError(t, err)

	assert.Equal(t, Costs{Flight: 200, Hotel: 150, Ticket: 80, Total: 430}, res.Costs)
	assert.Equal(t, Links{Flight: "https://flights.example/lon-man", Hotel: "https://hotels.example/man"}, res.Links)
	assert.Equal(t, *manchesterDerby, res.Fixture)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, "London", flights.gotOrigin)
	assert.Equal(t, "Manchester", flights.gotDest)
	assert.Equal(t, manchesterDerby.Date, flights.gotDate)
	assert.Equal(t, "Manchester", hotels.gotCity)
}

func TestCalculate_EstimatesHaveNoLinks(t *testing.T) {
	fixtures := &fakeFixtures{fixture: manchesterDerby}
	flights := &fakeFlights{quote: &provider.Quote{Price: 200, Link: "ignored", Estimated: true}}
	hotels := &fakeHotels{quote: &provider.Quote{Price: 180, Estimated: true}}

	res, err := NewCalculator(fixtures, flights, hotels).Calculate(context.Background(), 1, "Paris")
	require.NoError(t, err)
	assert.Equal(t, Links{}, res.Links)
	assert.Equal(t, 460.0, res.Costs.Total)
}

func TestCalculate_InvalidArgument(t *testing.T) {
	tests := []struct {
		name   string
		id     int
		origin string
	}{
		{"zero id", 0, "London"},
		{"negative id", -5, "London"},
		{"blank origin", 10, ""},
		{"whitespace origin", 10, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixtures := &fakeFixtures{fixture: manchesterDerby}
			flights := &fakeFlights{}
			hotels := &fakeHotels{}

			_, err := NewCalculator(fixtures, flights, hotels).Calculate(context.Background(), tt.id, tt.origin)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Zero(t, fixtures.calls.Load())
			assert.Zero(t, flights.calls.Load())
			assert.Zero(t, hotels.calls.Load())
		})
	}
}

func TestCalculate_NotFound(t *testing.T) {
	flights := &fakeFlights{}
	hotels := &fakeHotels{}

	_, err := NewCalculator(&fakeFixtures{}, flights, hotels).Calculate(context.Background(), 404, "London")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, flights.calls.Load())
	assert.Zero(t, hotels.calls.Load())
}

func TestCalculate_SourceError(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewCalculator(&fakeFixtures{err: boom}, &fakeFlights{}, &fakeHotels{}).Calculate(context.Background(), 1, "London")
	assert.ErrorIs(t, err, boom)

	_, err = NewCalculator(&fakeFixtures{fixture: manchesterDerby}, &fakeFlights{}, &fakeHotels{err: boom}).
		Calculate(context.Background(), 1, "London")
	assert.ErrorIs(t, err, boom)
}

func TestCalculate_MissingQuotesWarn(t *testing.T) {
	fixtures := &fakeFixtures{fixture: manchesterDerby}
	res, err := NewCalculator(fixtures, &fakeFlights{}, &fakeHotels{quote: &provider.Quote{Price: 0}}).
		Calculate(context.Background(), 1, "London")
	require.NoError(t, err)

	assert.Equal(t, Costs{Ticket: 80, Total: 80}, res.Costs)
	assert.Equal(t, []string{"flight price unavailable", "hotel price unavailable"}, res.Warnings)
}

func TestCalculate_RequireActor(t *testing.T) {
	fixtures := &fakeFixtures{fixture: manchesterDerby}
	flights := &fakeFlights{quote: &provider.Quote{Price: 100}}
	hotels := &fakeHotels{quote: &provider.Quote{Price: 100}}
	c := NewCalculator(fixtures, flights, hotels, WithRequireActor(true))

	_, err := c.Calculate(context.Background(), 1, "London")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, fixtures.calls.Load())

	res, err := c.Calculate(ledger.WithActor(context.Background(), "alice"), 1, "London")
	require.NoError(t, err)
	assert.Equal(t, 280.0, res.Costs.Total)
}

func TestCalculate_CustomPricing(t *testing.T) {
	p := DefaultPricing()
	p.Leagues["Premier League"] = Tier{Top: 120, Mid: 90, Low: 70}
	fixtures := &fakeFixtures{fixture: manchesterDerby}
	c := NewCalculator(fixtures, &fakeFlights{quote: &provider.Quote{Price: 1}}, &fakeHotels{quote: &provider.Quote{Price: 1}}, WithPricing(p))

	res, err := c.Calculate(context.Background(), 1, "London")
	require.NoError(t, err)
	assert.Equal(t, 120.0, res.Costs.Ticket)
	assert.Same(t, p, c.Pricing())
}

func TestCalculate_ThroughCache(t *testing.T) {
	l := ledger.New(ledger.NewMemorySink())
	defer l.Close()
	opts := cacheaside.Options{Store: cache.NewMemoryStore(), Recorder: l, TTLs: cacheaside.DefaultTTLs()}

	fixtures := &fakeFixtures{fixture: manchesterDerby}
	flights := &fakeFlights{quote: &provider.Quote{Price: 200, Link: "https://f"}}
	hotels := &fakeHotels{quote: &provider.Quote{Price: 150, Link: "https://h"}}
	c := NewCalculator(
		provider.NewCachedFixtures(fixtures, opts),
		provider.NewCachedFlights(flights, opts),
		provider.NewCachedHotels(hotels, opts),
	)
	ctx := ledger.WithActor(context.Background(), "bob")

	first, err := c.Calculate(ctx, 868012, "London")
	require.NoError(t, err)
	second, err := c.Calculate(ctx, 868012, "London")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 430.0, second.Costs.Total)
	assert.Equal(t, int32(1), fixtures.calls.Load())
	assert.Equal(t, int32(1), flights.calls.Load())
	assert.Equal(t, int32(1), hotels.calls.Load())

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Stats{Total: 6, Hits: 3, Misses: 3, HitRate: 50}, stats)
}

func TestTicketTotal(t *testing.T) {
	c := NewCalculator(nil, nil, nil)
	ticket, total := c.TicketTotal("La Liga", "Real Madrid", "Getafe", 120.5, 200)
	assert.Equal(t, 70.0, ticket)
	assert.Equal(t, 390.5, total)
}
