package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache or is expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidTTL indicates a non-positive ttl was passed to Set
	ErrInvalidTTL = errors.New("ttl must be positive")
)

// Store is a TTL key/value store shared by all cache-aside wrappers.
//
// Implementations must be safe for concurrent use. Concurrent Set calls on
// one key resolve to the last writer; readers never observe a mix of two
// writes.
type Store interface {
	// Get returns the live entry for key, or ErrCacheMiss.
	// An expired entry is deleted as a side effect.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set upserts key with a fresh CreatedAt and ExpiresAt = now + ttl.
	Set(ctx context.Context, key, category string, payload []byte, ttl time.Duration) error

	// ClearExpired deletes every entry with ExpiresAt <= now and returns
	// how many were removed.
	ClearExpired(ctx context.Context) (int64, error)

	// ClearAll deletes every entry and returns how many were removed.
	ClearAll(ctx context.Context) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

// ExpiryDeleter removes a single entry only while its stored expiry is at or
// before now. A Set that lands between a stale read and the delete moves the
// expiry forward, so the refreshed entry survives.
type ExpiryDeleter interface {
	DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error)
}

var (
	_ ExpiryDeleter = (*MemoryStore)(nil)
	_ ExpiryDeleter = (*RedisStore)(nil)
	_ ExpiryDeleter = (*PostgresStore)(nil)
)

// Clock returns the current time. Stores take one so expiry can be tested
// without sleeping.
type Clock func() time.Time

// Option configures a Store implementation.
type Option func(*options)

type options struct {
	clock  Clock
	prefix string
}

func defaultOptions() options {
	return options{
		clock:  time.Now,
		prefix: KeyPrefix + ":cache:",
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithNamespace overrides the backend key/table namespace used by the
// Redis store. Useful to isolate test runs sharing one server.
func WithNamespace(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
