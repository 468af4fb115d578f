// Package app assembles the tripcost components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tripcost/internal/config"
	"github.com/Sternrassler/tripcost/pkg/cache"
	"github.com/Sternrassler/tripcost/pkg/cacheaside"
	"github.com/Sternrassler/tripcost/pkg/flights"
	"github.com/Sternrassler/tripcost/pkg/football"
	"github.com/Sternrassler/tripcost/pkg/hotels"
	"github.com/Sternrassler/tripcost/pkg/identity"
	"github.com/Sternrassler/tripcost/pkg/ledger"
	"github.com/Sternrassler/tripcost/pkg/provider"
	"github.com/Sternrassler/tripcost/pkg/ratelimit"
	"github.com/Sternrassler/tripcost/pkg/trip"
)

// LedgerKeyPrefix namespaces the Redis ledger keys.
const LedgerKeyPrefix = "tripcost:ledger"

// App holds the wired components of one process.
type App struct {
	Config *config.Config

	Store      cache.Store
	Ledger     *ledger.Ledger
	Fixtures   provider.Fixtures
	Calculator *trip.Calculator
	Identity   *identity.MemoryStore

	// Redis is nil unless a component uses the redis backend.
	Redis redis.UniversalClient

	closers []func() error
}

// Build connects backends and wires providers behind their cache-aside
// decorators. Callers must Close the returned App.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}
	if err := a.build(ctx, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, logger zerolog.Logger) error {
	cfg := a.Config

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		pool = p
		a.closers = append(a.closers, func() error { p.Close(); return nil })
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	}
	if cfg.UsesRedis() {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		a.Redis = client
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	store, err := a.buildStore(ctx, pool)
	if err != nil {
		return err
	}
	a.Store = store

	sink, err := a.buildSink(ctx, pool)
	if err != nil {
		return err
	}
	a.Ledger = ledger.New(sink,
		ledger.WithBufferSize(cfg.Ledger.Buffer),
		ledger.WithLogger(logger.With().Str("component", "ledger").Logger()),
	)
	a.closers = append(a.closers, a.Ledger.Close)

	users, err := identity.ParseUsers(cfg.Auth.Users)
	if err != nil {
		return err
	}
	a.Identity = users

	pricing, err := trip.LoadPricing(cfg.PricingFile)
	if err != nil {
		return err
	}

	raw, err := a.buildProviders(logger)
	if err != nil {
		return err
	}

	asideLogger := logger.With().Str("component", "cacheaside").Logger()
	opts := cacheaside.Options{
		Store:    a.Store,
		Recorder: a.Ledger,
		TTLs:     cfg.Cache.TTLs(),
		Disabled: !cfg.Cache.Enabled,
		Logger:   &asideLogger,
	}
	a.Fixtures = provider.NewCachedFixtures(raw.fixtures, opts)
	a.Calculator = trip.NewCalculator(
		a.Fixtures,
		provider.NewCachedFlights(raw.flights, opts),
		provider.NewCachedHotels(raw.hotels, opts),
		trip.WithPricing(pricing),
		trip.WithRequireActor(cfg.Auth.Required),
		trip.WithLogger(logger.With().Str("component", "trip").Logger()),
	)

	logger.Info().
		Str("cache_backend", cfg.Cache.Backend).
		Bool("cache_enabled", cfg.Cache.Enabled).
		Str("ledger_backend", cfg.Ledger.Backend).
		Bool("auth_required", cfg.Auth.Required).
		Int("users", len(users.Users())).
		Msg("Application wired")
	return nil
}

func (a *App) buildStore(ctx context.Context, pool *pgxpool.Pool) (cache.Store, error) {
	switch a.Config.Cache.Backend {
	case config.BackendRedis:
		return cache.NewRedisStore(a.Redis), nil
	case config.BackendPostgres:
		s := cache.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return cache.NewMemoryStore(), nil
	}
}

func (a *App) buildSink(ctx context.Context, pool *pgxpool.Pool) (ledger.Sink, error) {
	switch a.Config.Ledger.Backend {
	case config.BackendRedis:
		return ledger.NewRedisSink(a.Redis, LedgerKeyPrefix), nil
	case config.BackendPostgres:
		s := ledger.NewPostgresSink(pool)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return ledger.NewMemorySink(), nil
	}
}

type sources struct {
	fixtures provider.Fixtures
	flights  provider.Flights
	hotels   provider.Hotels
}

func (a *App) buildProviders(logger zerolog.Logger) (sources, error) {
	cfg := a.Config

	if !cfg.HasFootball() {
		logger.Warn().Msg("FOOTBALL_API_KEY not set, fixture lookups will fail")
	}
	quota := ratelimit.NewTracker(ratelimit.Config{
		Upstream: "football",
		Redis:    a.Redis,
	}, logger.With().Str("component", "ratelimit").Logger())

	fb, err := football.New(football.Config{
		APIKey:    cfg.Football.APIKey,
		BaseURL:   cfg.Football.BaseURL,
		Season:    cfg.Football.Season,
		UserAgent: cfg.UserAgent,
		Quota:     quota,
	})
	if err != nil {
		return sources{}, err
	}
	fl, err := flights.New(flights.Config{
		APIKey:    cfg.Amadeus.APIKey,
		APISecret: cfg.Amadeus.APISecret,
		BaseURL:   cfg.Amadeus.BaseURL,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		return sources{}, err
	}
	ho, err := hotels.New(hotels.Config{
		APIKey:    cfg.Booking.APIKey,
		BaseURL:   cfg.Booking.BaseURL,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		return sources{}, err
	}
	return sources{fixtures: fb, flights: fl, hotels: ho}, nil
}

// Close releases resources in reverse order of acquisition. The ledger is
// drained before its backend connection goes away.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
