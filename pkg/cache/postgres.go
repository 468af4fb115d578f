package cache

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var postgresSchema string

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore is a durable Store backed by the api_cache table.
type PostgresStore struct {
	db   DB
	opts options
}

// NewPostgresStore creates a store on top of an existing pool.
// Call Migrate once before use if the schema may be missing.
func NewPostgresStore(db DB, opts ...Option) *PostgresStore {
	if db == nil {
		panic("postgres pool cannot be nil")
	}
	return &PostgresStore{db: db, opts: applyOptions(opts)}
}

// Migrate creates the api_cache table and its indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate api_cache: %w", err)
	}
	return nil
}

// Get retrieves a live entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	entry := Entry{Key: key}
	err := s.db.QueryRow(ctx,
		`SELECT cache_type, response_data, created_at, expires_at FROM api_cache WHERE cache_key = $1`,
		key,
	).Scan(&entry.Category, &entry.Payload, &entry.CreatedAt, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		StoreErrors.WithLabelValues("postgres", "get").Inc()
		return nil, fmt.Errorf("postgres select: %w", err)
	}

	now := s.opts.clock()
	if entry.IsExpiredAt(now) {
		if removed, err := s.DeleteIfExpired(ctx, key, now); err == nil && removed {
			Evictions.WithLabelValues("postgres", "lazy").Inc()
		}
		return nil, ErrCacheMiss
	}

	return &entry, nil
}

// DeleteIfExpired removes key if its stored expires_at is at or before now.
func (s *PostgresStore) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM api_cache WHERE cache_key = $1 AND expires_at <= $2`,
		key, now,
	)
	if err != nil {
		StoreErrors.WithLabelValues("postgres", "delete").Inc()
		return false, fmt.Errorf("postgres delete expired: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Set upserts payload under key for ttl.
func (s *PostgresStore) Set(ctx context.Context, key, category string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	now := s.opts.clock()

	_, err := s.db.Exec(ctx, `
		INSERT INTO api_cache (cache_key, cache_type, response_data, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key) DO UPDATE SET
			cache_type    = EXCLUDED.cache_type,
			response_data = EXCLUDED.response_data,
			created_at    = EXCLUDED.created_at,
			expires_at    = EXCLUDED.expires_at`,
		key, category, payload, now, now.Add(ttl),
	)
	if err != nil {
		StoreErrors.WithLabelValues("postgres", "set").Inc()
		return fmt.Errorf("postgres upsert: %w", err)
	}
	return nil
}

// ClearExpired removes entries whose expiry is at or before now.
func (s *PostgresStore) ClearExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM api_cache WHERE expires_at <= $1`, s.opts.clock())
	if err != nil {
		StoreErrors.WithLabelValues("postgres", "clear_expired").Inc()
		return 0, fmt.Errorf("postgres delete expired: %w", err)
	}
	removed := tag.RowsAffected()
	Evictions.WithLabelValues("postgres", "sweep").Add(float64(removed))
	return removed, nil
}

// ClearAll removes every entry.
func (s *PostgresStore) ClearAll(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM api_cache`)
	if err != nil {
		StoreErrors.WithLabelValues("postgres", "clear_all").Inc()
		return 0, fmt.Errorf("postgres delete all: %w", err)
	}
	removed := tag.RowsAffected()
	Evictions.WithLabelValues("postgres", "clear").Add(float64(removed))
	return removed, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
