package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	fieldTotal = "total"
	fieldHits  = "hits"

	// DefaultRecentRecords is how many raw records RedisSink retains
	DefaultRecentRecords = 1000
)

// RedisSink keeps running counters in a hash and the most recent records in
// a capped list.
type RedisSink struct {
	redis     redis.UniversalClient
	countKey  string
	recentKey string
	keep      int64
}

// NewRedisSink creates a sink using keys under prefix (e.g. "tripcost:ledger").
func NewRedisSink(client redis.UniversalClient, prefix string) *RedisSink {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisSink{
		redis:     client,
		countKey:  prefix + ":counts",
		recentKey: prefix + ":recent",
		keep:      DefaultRecentRecords,
	}
}

// Append bumps the counters and pushes rec onto the recent list.
func (s *RedisSink) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.countKey, fieldTotal, 1)
		if rec.CacheHit {
			pipe.HIncrBy(ctx, s.countKey, fieldHits, 1)
		}
		pipe.LPush(ctx, s.recentKey, data)
		pipe.LTrim(ctx, s.recentKey, 0, s.keep-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append record: %w", err)
	}
	return nil
}

// Counts returns the number of records and how many were hits.
func (s *RedisSink) Counts(ctx context.Context) (int64, int64, error) {
	vals, err := s.redis.HMGet(ctx, s.countKey, fieldTotal, fieldHits).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis read counters: %w", err)
	}
	total, err := toInt64(vals[0])
	if err != nil {
		return 0, 0, err
	}
	hits, err := toInt64(vals[1])
	if err != nil {
		return 0, 0, err
	}
	return total, hits, nil
}

// Recent returns up to n of the latest records, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]Record, error) {
	raw, err := s.redis.LRange(ctx, s.recentKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read recent: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected counter type %T", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", s, err)
	}
	return n, nil
}
