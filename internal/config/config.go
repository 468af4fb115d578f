// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Sternrassler/tripcost/pkg/cacheaside"
)

// Backend names accepted by CACHE_BACKEND and LEDGER_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY"`
	UserAgent string `env:"USER_AGENT" envDefault:"TripCost/1.0 (+https://github.com/Sternrassler/tripcost)"`

	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Ledger   LedgerConfig   `envPrefix:"LEDGER_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Football FootballConfig `envPrefix:"FOOTBALL_"`
	Amadeus  AmadeusConfig  `envPrefix:"AMADEUS_"`
	Booking  BookingConfig  `envPrefix:"BOOKING_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`

	DatabaseURL       string `env:"DATABASE_URL"`
	PricingFile       string `env:"PRICING_FILE"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`
}

// CacheConfig selects and tunes the cache store.
type CacheConfig struct {
	Backend       string        `env:"BACKEND" envDefault:"memory"`
	Enabled       bool          `env:"ENABLED" envDefault:"true"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s"`

	TTLTeams   time.Duration `env:"TTL_TEAMS" envDefault:"168h"`
	TTLMatches time.Duration `env:"TTL_MATCHES" envDefault:"24h"`
	TTLFixture time.Duration `env:"TTL_FIXTURE" envDefault:"24h"`
	TTLFlight  time.Duration `env:"TTL_FLIGHT" envDefault:"6h"`
	TTLHotel   time.Duration `env:"TTL_HOTEL" envDefault:"6h"`
}

// TTLs returns the per-category lifetimes.
func (c CacheConfig) TTLs() cacheaside.TTLs {
	return cacheaside.TTLs{
		cacheaside.CategoryTeams:        c.TTLTeams,
		cacheaside.CategoryMatches:      c.TTLMatches,
		cacheaside.CategoryMatchDetails: c.TTLFixture,
		cacheaside.CategoryFlight:       c.TTLFlight,
		cacheaside.CategoryHotel:        c.TTLHotel,
	}
}

// LedgerConfig selects the request ledger sink.
type LedgerConfig struct {
	Backend string `env:"BACKEND" envDefault:"memory"`
	Buffer  int    `env:"BUFFER" envDefault:"1024"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr string `env:"ADDR" envDefault:"localhost:6379"`
	DB   int    `env:"DB" envDefault:"0"`
}

// FootballConfig holds api-sports settings.
type FootballConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://v3.football.api-sports.io"`
	Season  int    `env:"SEASON" envDefault:"2023"`
}

// AmadeusConfig holds flight API credentials.
type AmadeusConfig struct {
	APIKey    string `env:"API_KEY"`
	APISecret string `env:"API_SECRET"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://test.api.amadeus.com"`
}

// BookingConfig holds hotel API settings.
type BookingConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://booking-com.p.rapidapi.com"`
}

// AuthConfig controls actor attribution.
type AuthConfig struct {
	Required bool `env:"REQUIRED"`

	// Users are "name:bcrypt-hash" pairs.
	Users []string `env:"USERS" envSeparator:","`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	for name, backend := range map[string]string{"CACHE_BACKEND": c.Cache.Backend, "LEDGER_BACKEND": c.Ledger.Backend} {
		switch backend {
		case BackendMemory, BackendRedis, BackendPostgres:
		default:
			errs = append(errs, fmt.Errorf("%s must be memory, redis or postgres, got %q", name, backend))
		}
	}
	if c.UsesPostgres() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
	}
	if c.Ledger.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("LEDGER_BUFFER must be positive, got %d", c.Ledger.Buffer))
	}
	if c.Cache.SweepInterval < 0 {
		errs = append(errs, errors.New("CACHE_SWEEP_INTERVAL must not be negative"))
	}
	for cat, ttl := range c.Cache.TTLs() {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("cache TTL for %s must be positive", cat))
		}
	}
	if c.Auth.Required && len(c.Auth.Users) == 0 {
		errs = append(errs, errors.New("AUTH_REQUIRED needs at least one AUTH_USERS entry"))
	}
	if c.WorkerConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == BackendRedis || c.Ledger.Backend == BackendRedis
}

// UsesPostgres reports whether any component needs a database pool.
func (c *Config) UsesPostgres() bool {
	return c.Cache.Backend == BackendPostgres || c.Ledger.Backend == BackendPostgres
}

// HasFootball reports whether an api-sports key is configured.
func (c *Config) HasFootball() bool {
	return c.Football.APIKey != ""
}
