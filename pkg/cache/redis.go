package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPayload   = "payload"
	fieldCategory  = "category"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"

	scanBatch = 200
)

// deleteIfExpired removes KEYS[1] only if its stored expiry is at or before
// ARGV[1] (unix millis). A concurrent refresh moves expires_at forward, so a
// refreshed entry survives.
var deleteIfExpired = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if exp and tonumber(exp) <= tonumber(ARGV[1]) then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore is a Store backed by Redis hashes.
//
// Each entry is one hash with payload, category, created_at and expires_at
// fields, written atomically in a MULTI block. Redis' own key expiry is set
// as well, so abandoned keys do not accumulate between sweeps.
type RedisStore struct {
	redis redis.UniversalClient
	opts  options
}

// NewRedisStore creates a store on top of an existing Redis client.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: client,
		opts:  applyOptions(opts),
	}
}

func (s *RedisStore) redisKey(key string) string {
	return s.opts.prefix + key
}

// Get retrieves a live entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	rkey := s.redisKey(key)

	fields, err := s.redis.HGetAll(ctx, rkey).Result()
	if err != nil {
		StoreErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	entry, err := decodeHash(key, fields)
	if err != nil {
		StoreErrors.WithLabelValues("redis", "get").Inc()
		return nil, err
	}

	now := s.opts.clock()
	if entry.IsExpiredAt(now) {
		if removed, err := s.DeleteIfExpired(ctx, key, now); err == nil && removed {
			Evictions.WithLabelValues("redis", "lazy").Inc()
		}
		return nil, ErrCacheMiss
	}

	return entry, nil
}

// DeleteIfExpired removes key if its stored expires_at is at or before now.
// The check and the delete run as one Lua script.
func (s *RedisStore) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	n, err := deleteIfExpired.Run(ctx, s.redis, []string{s.redisKey(key)}, now.UnixMilli()).Int64()
	if err != nil {
		StoreErrors.WithLabelValues("redis", "delete").Inc()
		return false, fmt.Errorf("redis delete expired: %w", err)
	}
	return n > 0, nil
}

// Set stores payload under key for ttl.
func (s *RedisStore) Set(ctx context.Context, key, category string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	now := s.opts.clock()
	rkey := s.redisKey(key)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rkey,
			fieldPayload, payload,
			fieldCategory, category,
			fieldCreatedAt, now.UnixMilli(),
			fieldExpiresAt, now.Add(ttl).UnixMilli(),
		)
		pipe.PExpire(ctx, rkey, ttl)
		return nil
	})
	if err != nil {
		StoreErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// ClearExpired removes entries whose stored expiry is at or before now.
// Keys Redis already expired on its own are not counted.
func (s *RedisStore) ClearExpired(ctx context.Context) (int64, error) {
	now := s.opts.clock().UnixMilli()

	var removed int64
	err := s.scan(ctx, func(keys []string) error {
		for _, k := range keys {
			n, err := deleteIfExpired.Run(ctx, s.redis, []string{k}, now).Int64()
			if err != nil {
				return fmt.Errorf("redis delete expired: %w", err)
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		StoreErrors.WithLabelValues("redis", "clear_expired").Inc()
		return removed, err
	}

	Evictions.WithLabelValues("redis", "sweep").Add(float64(removed))
	return removed, nil
}

// ClearAll removes every entry in the store's namespace.
func (s *RedisStore) ClearAll(ctx context.Context) (int64, error) {
	var removed int64
	err := s.scan(ctx, func(keys []string) error {
		n, err := s.redis.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		removed += n
		return nil
	})
	if err != nil {
		StoreErrors.WithLabelValues("redis", "clear_all").Inc()
		return removed, err
	}

	Evictions.WithLabelValues("redis", "clear").Add(float64(removed))
	return removed, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.opts.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func decodeHash(key string, fields map[string]string) (*Entry, error) {
	payload, ok := fields[fieldPayload]
	if !ok {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidEntry)
	}
	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", ErrInvalidEntry, err)
	}
	expires, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: expires_at: %v", ErrInvalidEntry, err)
	}
	return &Entry{
		Key:       key,
		Category:  fields[fieldCategory],
		Payload:   []byte(payload),
		CreatedAt: time.UnixMilli(created),
		ExpiresAt: time.UnixMilli(expires),
	}, nil
}
