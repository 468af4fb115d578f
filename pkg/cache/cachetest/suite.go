// Package cachetest holds a behavioural test suite that every cache.Store
// backend must pass, plus a controllable clock.
package cachetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/tripcost/pkg/cache"
)

// FakeClock is a manually advanced time source.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Factory builds a fresh, empty store that reads time from clock.
type Factory func(t *testing.T, clock cache.Clock) cache.Store

// Epoch is the start time used by the suite. Whole seconds keep every
// backend's timestamp precision exact.
var Epoch = time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC)

// Run executes the store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	setup := func(t *testing.T) (cache.Store, *FakeClock) {
		clock := NewFakeClock(Epoch)
		return newStore(t, clock.Now), clock
	}

	t.Run("SetAndGet", func(t *testing.T) {
		store, _ := setup(t)
		ctx := context.Background()

		if err := store.Set(ctx, "k1", "teams", []byte(`[{"id":1}]`), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		entry, err := store.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(entry.Payload) != `[{"id":1}]` {
			t.Errorf("Payload mismatch: got %s", entry.Payload)
		}
		if entry.Category != "teams" {
			t.Errorf("Category mismatch: got %s, want teams", entry.Category)
		}
		if !entry.CreatedAt.Equal(Epoch) {
			t.Errorf("CreatedAt = %v, want %v", entry.CreatedAt, Epoch)
		}
		if !entry.ExpiresAt.Equal(Epoch.Add(time.Hour)) {
			t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, Epoch.Add(time.Hour))
		}
	})

	t.Run("MissingKey", func(t *testing.T) {
		store, _ := setup(t)
		_, err := store.Get(context.Background(), "absent")
		if !errors.Is(err, cache.ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("InvalidTTL", func(t *testing.T) {
		store, _ := setup(t)
		for _, ttl := range []time.Duration{0, -time.Second} {
			err := store.Set(context.Background(), "k", "flight", []byte("1"), ttl)
			if !errors.Is(err, cache.ErrInvalidTTL) {
				t.Errorf("Set(ttl=%v) error = %v, want ErrInvalidTTL", ttl, err)
			}
		}
	})

	t.Run("ExpiryBoundary", func(t *testing.T) {
		store, clock := setup(t)
		ctx := context.Background()

		if err := store.Set(ctx, "k", "flight", []byte("250"), 6*time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		clock.Advance(6*time.Hour - time.Second)
		if _, err := store.Get(ctx, "k"); err != nil {
			t.Fatalf("entry should be live one second before expiry: %v", err)
		}

		clock.Advance(time.Second)
		if _, err := store.Get(ctx, "k"); !errors.Is(err, cache.ErrCacheMiss) {
			t.Fatalf("entry should be stale at expires_at, got %v", err)
		}
	})

	t.Run("LazyDeleteOnRead", func(t *testing.T) {
		store, clock := setup(t)
		ctx := context.Background()

		if err := store.Set(ctx, "k", "hotel", []byte("200"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		clock.Advance(2 * time.Minute)

		if _, err := store.Get(ctx, "k"); !errors.Is(err, cache.ErrCacheMiss) {
			t.Fatalf("Expected ErrCacheMiss, got %v", err)
		}

		removed, err := store.ClearExpired(ctx)
		if err != nil {
			t.Fatalf("ClearExpired failed: %v", err)
		}
		if removed != 0 {
			t.Errorf("ClearExpired removed %d, want 0 after lazy delete", removed)
		}
	})

	t.Run("UpsertResetsExpiry", func(t *testing.T) {
		store, clock := setup(t)
		ctx := context.Background()

		if err := store.Set(ctx, "k", "matches", []byte("old"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		clock.Advance(50 * time.Second)
		if err := store.Set(ctx, "k", "match_details", []byte("new"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		clock.Advance(30 * time.Second)

		entry, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("refreshed entry should be live: %v", err)
		}
		if string(entry.Payload) != "new" || entry.Category != "match_details" {
			t.Errorf("got %s/%s, want new/match_details", entry.Payload, entry.Category)
		}
		if !entry.CreatedAt.Equal(Epoch.Add(50 * time.Second)) {
			t.Errorf("CreatedAt not reset: %v", entry.CreatedAt)
		}
	})

	t.Run("ClearExpired", func(t *testing.T) {
		store, clock := setup(t)
		ctx := context.Background()

		mustSet(t, store, "short-1", time.Minute)
		mustSet(t, store, "short-2", 2*time.Minute)
		mustSet(t, store, "long", time.Hour)

		clock.Advance(2 * time.Minute)

		removed, err := store.ClearExpired(ctx)
		if err != nil {
			t.Fatalf("ClearExpired failed: %v", err)
		}
		if removed != 2 {
			t.Errorf("ClearExpired removed %d, want 2", removed)
		}

		again, err := store.ClearExpired(ctx)
		if err != nil {
			t.Fatalf("second ClearExpired failed: %v", err)
		}
		if again != 0 {
			t.Errorf("second ClearExpired removed %d, want 0", again)
		}

		if _, err := store.Get(ctx, "long"); err != nil {
			t.Errorf("live entry removed by ClearExpired: %v", err)
		}
	})

	t.Run("RefreshSurvivesStaleDelete", func(t *testing.T) {
		store, clock := setup(t)
		ctx := context.Background()

		mustSet(t, store, "k", time.Minute)
		clock.Advance(2 * time.Minute)
		// A reader saw the expired copy at stale; a writer refreshes before
		// the reader's delete runs.
		stale := clock.Now()
		mustSet(t, store, "k", time.Hour)

		if d, ok := store.(cache.ExpiryDeleter); ok {
			removed, err := d.DeleteIfExpired(ctx, "k", stale)
			if err != nil {
				t.Fatalf("DeleteIfExpired failed: %v", err)
			}
			if removed {
				t.Error("DeleteIfExpired removed a refreshed entry")
			}
		}

		removed, err := store.ClearExpired(ctx)
		if err != nil {
			t.Fatalf("ClearExpired failed: %v", err)
		}
		if removed != 0 {
			t.Errorf("ClearExpired removed %d, want 0", removed)
		}
		if _, err := store.Get(ctx, "k"); err != nil {
			t.Errorf("refreshed entry lost: %v", err)
		}

		d, ok := store.(cache.ExpiryDeleter)
		if !ok {
			return
		}
		mustSet(t, store, "old", time.Minute)
		clock.Advance(time.Minute)
		gone, err := d.DeleteIfExpired(ctx, "old", clock.Now())
		if err != nil {
			t.Fatalf("DeleteIfExpired failed: %v", err)
		}
		if !gone {
			t.Error("DeleteIfExpired kept an expired entry")
		}
		if _, err := store.Get(ctx, "k"); err != nil {
			t.Errorf("live entry removed: %v", err)
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		store, _ := setup(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			mustSet(t, store, fmt.Sprintf("k%d", i), time.Hour)
		}

		removed, err := store.ClearAll(ctx)
		if err != nil {
			t.Fatalf("ClearAll failed: %v", err)
		}
		if removed != 5 {
			t.Errorf("ClearAll removed %d, want 5", removed)
		}
		if _, err := store.Get(ctx, "k0"); !errors.Is(err, cache.ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss after ClearAll, got %v", err)
		}

		again, err := store.ClearAll(ctx)
		if err != nil {
			t.Fatalf("second ClearAll failed: %v", err)
		}
		if again != 0 {
			t.Errorf("second ClearAll removed %d, want 0", again)
		}
	})

	t.Run("PayloadIsCopied", func(t *testing.T) {
		store, _ := setup(t)
		ctx := context.Background()

		payload := []byte("abc")
		if err := store.Set(ctx, "k", "teams", payload, time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		payload[0] = 'x'

		entry, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(entry.Payload) != "abc" {
			t.Errorf("stored payload changed with caller buffer: %s", entry.Payload)
		}
	})

	t.Run("ConcurrentWritersLastWins", func(t *testing.T) {
		store, _ := setup(t)
		ctx := context.Background()

		const writers = 16
		payloads := make([][]byte, writers)
		for i := range payloads {
			payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 64)
		}

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(p []byte) {
				defer wg.Done()
				if err := store.Set(ctx, "shared", "flight", p, time.Hour); err != nil {
					t.Errorf("Set failed: %v", err)
				}
			}(payloads[i])
		}
		wg.Wait()

		entry, err := store.Get(ctx, "shared")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		found := false
		for _, p := range payloads {
			if bytes.Equal(entry.Payload, p) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("torn payload: %s", entry.Payload)
		}
	})
}

func mustSet(t *testing.T, store cache.Store, key string, ttl time.Duration) {
	t.Helper()
	if err := store.Set(context.Background(), key, "teams", []byte("[]"), ttl); err != nil {
		t.Fatalf("Set(%s) failed: %v", key, err)
	}
}
