// Package cacheaside wraps failure-prone loaders with a read-through cache.
//
// A wrapped call looks the key up in a cache.Store, falls back to the loader
// on a miss, and stores usable results for the category's TTL. Empty
// results and loader failures are returned to the caller as the zero value
// and are never cached, so a transient upstream outage does not pin a
// negative answer. Store failures degrade to a miss. Every call is reported
// to a Recorder (normally the request ledger).
package cacheaside

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tripcost/pkg/cache"
	"github.com/Sternrassler/tripcost/pkg/ledger"
)

// Recorder receives one call per wrapped lookup.
type Recorder interface {
	Log(endpoint, actor string, cacheHit bool)
}

// Loader fetches a value from the upstream provider.
type Loader[P, T any] func(ctx context.Context, params P) (T, error)

// Config describes one wrapped operation.
type Config[P, T any] struct {
	// Name identifies the operation in the ledger (e.g. "get_flight_price")
	Name string

	// Category selects the TTL and labels stored entries
	Category Category

	// Key derives the cache key from the call parameters
	Key func(P) cache.Key

	// Empty reports results that must not be cached
	Empty func(T) bool
}

// Options are shared by every wrapper built for one deployment.
type Options struct {
	Store    cache.Store
	Recorder Recorder
	TTLs     TTLs

	// Disabled bypasses the store; calls still reach the Recorder.
	Disabled bool

	Logger *zerolog.Logger
}

// Aside is a cache-aside decorator around a Loader.
type Aside[P, T any] struct {
	cfg    Config[P, T]
	load   Loader[P, T]
	store  cache.Store
	rec    Recorder
	ttl    time.Duration
	logger zerolog.Logger
}

// New wraps load according to cfg.
func New[P, T any](opts Options, cfg Config[P, T], load Loader[P, T]) *Aside[P, T] {
	if load == nil {
		panic("cacheaside: loader cannot be nil")
	}
	if cfg.Key == nil {
		panic("cacheaside: key function cannot be nil")
	}

	a := &Aside[P, T]{
		cfg:  cfg,
		load: load,
		rec:  opts.Recorder,
		ttl:  opts.TTLs.For(cfg.Category),
	}
	if !opts.Disabled {
		a.store = opts.Store
	}
	if opts.Logger != nil {
		a.logger = opts.Logger.With().Str("operation", cfg.Name).Logger()
	} else {
		a.logger = log.With().Str("component", "cacheaside").Str("operation", cfg.Name).Logger()
	}
	return a
}

// TTL returns the lifetime applied to stored results.
func (a *Aside[P, T]) TTL() time.Duration {
	return a.ttl
}

// Get returns the value for params and whether it came from the cache.
// It never fails: loader errors yield the zero value.
func (a *Aside[P, T]) Get(ctx context.Context, params P) (T, bool) {
	key := a.cfg.Key(params).String()
	category := string(a.cfg.Category)

	if v, ok := a.lookup(ctx, key); ok {
		cache.CacheHits.WithLabelValues(category).Inc()
		a.logger.Debug().
			Str("key", key).
			Bool("cache_hit", true).
			Msg("Cache hit")
		a.record(ctx, true)
		return v, true
	}
	cache.CacheMisses.WithLabelValues(category).Inc()

	v, err := a.load(ctx, params)
	if err != nil {
		ProviderFailures.WithLabelValues(a.cfg.Name).Inc()
		a.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Provider unavailable, returning empty result")
		var zero T
		a.record(ctx, false)
		return zero, false
	}

	if a.isEmpty(v) {
		a.logger.Debug().
			Str("key", key).
			Msg("Empty result, not cached")
		a.record(ctx, false)
		return v, false
	}

	a.save(ctx, key, v)
	a.record(ctx, false)
	return v, false
}

func (a *Aside[P, T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T
	if a.store == nil {
		return zero, false
	}

	entry, err := a.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			a.logger.Warn().
				Err(err).
				Str("key", key).
				Msg("Cache read failed, treating as miss")
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(entry.Payload, &v); err != nil {
		DecodeFailures.WithLabelValues(a.cfg.Name).Inc()
		a.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Cached payload undecodable, treating as miss")
		return zero, false
	}
	return v, true
}

func (a *Aside[P, T]) save(ctx context.Context, key string, v T) {
	if a.store == nil {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Result not encodable, skipping cache")
		return
	}

	if err := a.store.Set(ctx, key, string(a.cfg.Category), payload, a.ttl); err != nil {
		a.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Cache write failed")
		return
	}

	a.logger.Debug().
		Str("key", key).
		Dur("ttl", a.ttl).
		Msg("Cached result")
}

func (a *Aside[P, T]) isEmpty(v T) bool {
	if a.cfg.Empty != nil {
		return a.cfg.Empty(v)
	}
	return false
}

func (a *Aside[P, T]) record(ctx context.Context, hit bool) {
	if a.rec == nil {
		return
	}
	a.rec.Log(a.cfg.Name, ledger.ActorFrom(ctx), hit)
}
