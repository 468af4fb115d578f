package ledger

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var postgresSchema string

// DB is the subset of *pgxpool.Pool used by PostgresSink.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSink writes records to the request_log table.
type PostgresSink struct {
	db DB
}

// NewPostgresSink creates a sink on top of an existing pool.
func NewPostgresSink(db DB) *PostgresSink {
	if db == nil {
		panic("postgres pool cannot be nil")
	}
	return &PostgresSink{db: db}
}

// Migrate creates the request_log table if it does not exist.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate request_log: %w", err)
	}
	return nil
}

// Append inserts rec. An empty actor is stored as NULL.
func (s *PostgresSink) Append(ctx context.Context, rec Record) error {
	var actor *string
	if rec.Actor != "" {
		actor = &rec.Actor
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO request_log (id, endpoint, username, cache_hit, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Endpoint, actor, rec.CacheHit, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert request_log: %w", err)
	}
	return nil
}

// Counts returns the number of records and how many were hits.
func (s *PostgresSink) Counts(ctx context.Context) (int64, int64, error) {
	var total, hits int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE cache_hit) FROM request_log`,
	).Scan(&total, &hits)
	if err != nil {
		return 0, 0, fmt.Errorf("count request_log: %w", err)
	}
	return total, hits, nil
}
