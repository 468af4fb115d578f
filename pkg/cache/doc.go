// Package cache provides the TTL key/value store behind every cache-aside
// wrapper.
//
// Three backends implement Store:
//
// - MemoryStore: process-local map, the default for single-binary use
// - RedisStore: one Redis hash per entry, shared between processes
// - PostgresStore: the durable api_cache table
//
// All backends share the same semantics:
//
// - An entry is live strictly before ExpiresAt
// - Reading an expired entry deletes it and reports ErrCacheMiss
// - Set is an upsert; the last writer wins and a reader never sees a torn entry
// - ClearExpired and ClearAll return the number of removed entries
//
// # Basic Usage
//
//	store := cache.NewRedisStore(redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	}))
//
//	key := cache.NewKey("flight", "London", "Madrid", "2024-03-10").String()
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream, then
//		_ = store.Set(ctx, key, "flight", payload, 6*time.Hour)
//	}
//
// # Metrics
//
//   - tripcost_cache_hits_total{category} - Cache-aside hits
//   - tripcost_cache_misses_total{category} - Cache-aside misses
//   - tripcost_cache_errors_total{backend,operation} - Store I/O errors
//   - tripcost_cache_evictions_total{backend,reason} - Removed entries
package cache
