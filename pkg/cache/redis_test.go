package cache_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/tripcost/pkg/cache"
	"github.com/Sternrassler/tripcost/pkg/cache/cachetest"
)

// setupTestRedis starts an in-process Redis server.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})
	return mr, client
}

func TestRedisStore(t *testing.T) {
	cachetest.Run(t, func(t *testing.T, clock cache.Clock) cache.Store {
		_, client := setupTestRedis(t)
		return cache.NewRedisStore(client, cache.WithClock(clock))
	})
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	cache.NewRedisStore(nil)
}

func TestRedisStore_NativeExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := cache.NewRedisStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "flight", []byte("200"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := mr.TTL("tripcost:cache:k"); ttl != time.Minute {
		t.Errorf("redis TTL = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if mr.Exists("tripcost:cache:k") {
		t.Error("key should have been expired by redis")
	}
}

func TestRedisStore_Namespace(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	a := cache.NewRedisStore(client, cache.WithNamespace("a:"))
	b := cache.NewRedisStore(client, cache.WithNamespace("b:"))

	if err := a.Set(ctx, "k", "teams", []byte("a"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := b.Set(ctx, "k", "teams", []byte("b"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	removed, err := a.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("ClearAll removed %d, want 1", removed)
	}

	entry, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatalf("other namespace affected: %v", err)
	}
	if string(entry.Payload) != "b" {
		t.Errorf("Payload = %s, want b", entry.Payload)
	}
}

func TestRedisStore_DeleteIfExpiredComparesStoredExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	clock := cachetest.NewFakeClock(cachetest.Epoch)
	store := cache.NewRedisStore(client, cache.WithClock(clock.Now))
	ctx := context.Background()

	if err := store.Set(ctx, "k", "hotel", []byte("200"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	clock.Advance(2 * time.Minute)

	// Another process rewrites the hash with a later expiry.
	refreshed := clock.Now().Add(time.Hour).UnixMilli()
	mr.HSet("tripcost:cache:k", "expires_at", strconv.FormatInt(refreshed, 10))

	removed, err := store.DeleteIfExpired(ctx, "k", clock.Now())
	if err != nil {
		t.Fatalf("DeleteIfExpired failed: %v", err)
	}
	if removed || !mr.Exists("tripcost:cache:k") {
		t.Fatal("refreshed hash was deleted")
	}

	removed, err = store.DeleteIfExpired(ctx, "k", time.UnixMilli(refreshed))
	if err != nil {
		t.Fatalf("DeleteIfExpired failed: %v", err)
	}
	if !removed || mr.Exists("tripcost:cache:k") {
		t.Error("hash at its stored expiry was kept")
	}

	removed, err = store.DeleteIfExpired(ctx, "absent", clock.Now())
	if err != nil || removed {
		t.Errorf("absent key: removed=%v err=%v", removed, err)
	}
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := cache.NewRedisStore(client)

	mr.HSet("tripcost:cache:bad", "payload", "x", "expires_at", "not-a-number")

	_, err := store.Get(context.Background(), "bad")
	if !errors.Is(err, cache.ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := cache.NewRedisStore(client)
	mr.Close()

	ctx := context.Background()
	if _, err := store.Get(ctx, "k"); err == nil || errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Get on closed server should fail with an I/O error, got %v", err)
	}
	if _, err := store.ClearAll(ctx); err == nil {
		t.Error("ClearAll on closed server should fail")
	}
	if err := store.Ping(ctx); err == nil {
		t.Error("Ping on closed server should fail")
	}
}
