package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/tripcost/internal/api"
	"github.com/Sternrassler/tripcost/internal/app"
	"github.com/Sternrassler/tripcost/internal/config"
	"github.com/Sternrassler/tripcost/internal/testutil"
	"github.com/Sternrassler/tripcost/pkg/cache"
	"github.com/Sternrassler/tripcost/pkg/cache/cachetest"
	"github.com/Sternrassler/tripcost/pkg/football"
	"github.com/Sternrassler/tripcost/pkg/ledger"
	"github.com/Sternrassler/tripcost/pkg/ratelimit"
	"github.com/Sternrassler/tripcost/pkg/upstream"
)

const pgPassword = "tripcost"

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	addr := host + ":" + port.Port()
	redisClient := redis.NewClient(&redis.Options{Addr: addr})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient, addr
}

// setupPostgres creates a Postgres container and returns a pool plus its DSN.
func setupPostgres(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "tripcost",
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       "tripcost",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := "postgres://tripcost:" + pgPassword + "@" + host + ":" + port.Port() + "/tripcost?sslmode=disable"
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		container.Terminate(ctx)
	})

	return pool, dsn
}

func madridDerby() testutil.FixtureSpec {
	return testutil.FixtureSpec{
		ID:     1035037,
		Date:   time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC),
		HomeID: 541, Home: "Real Madrid",
		AwayID: 529, Away: "Barcelona",
		Venue: "Santiago Bernabéu", City: "Madrid", League: "La Liga",
	}
}

// TestRedisStore runs the store contract against a real Redis server.
func TestRedisStore(t *testing.T) {
	client, _ := setupRedis(t)

	cachetest.Run(t, func(t *testing.T, clock cache.Clock) cache.Store {
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("FlushDB: %v", err)
		}
		return cache.NewRedisStore(client, cache.WithClock(clock))
	})
}

// TestPostgresStore runs the store contract against a real Postgres server.
func TestPostgresStore(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()

	cachetest.Run(t, func(t *testing.T, clock cache.Clock) cache.Store {
		store := cache.NewPostgresStore(pool, cache.WithClock(clock))
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		if _, err := store.ClearAll(ctx); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
		return store
	})
}

// TestPostgresLedger checks that records survive in the request_log table.
func TestPostgresLedger(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()

	sink := ledger.NewPostgresSink(pool)
	if err := sink.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	l := ledger.New(sink)
	l.Log("get_match_details", "alice", false)
	l.Log("get_match_details", "alice", true)
	l.Log("get_flight_price", "", true)

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := ledger.Stats{Total: 3, Hits: 2, Misses: 1, HitRate: 66.67}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	// A fresh ledger over the same table sees the persisted counts.
	l2 := ledger.New(sink)
	defer l2.Close()
	stats, err = l2.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total after reopen = %d, want 3", stats.Total)
	}
}

// tripFlow drives the HTTP API through a wired application and checks that
// the second calculation is served from the shared cache.
func tripFlow(t *testing.T, environ map[string]string) {
	t.Helper()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse(testutil.PathFootballFixtures, testutil.NewQuotaResponse(testutil.FixturesBody(madridDerby()), 90, 100))

	environ["FOOTBALL_API_KEY"] = "key"
	environ["FOOTBALL_BASE_URL"] = mock.URL()
	cfg, err := config.LoadFrom(environ)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}
	defer a.Close()

	server := httptest.NewServer(api.New(api.Options{
		Store:      a.Store,
		Ledger:     a.Ledger,
		Fixtures:   a.Fixtures,
		Calculator: a.Calculator,
		Leagues:    football.TopLeagues(),
		Identity:   a.Identity,
		Logger:     zerolog.Nop(),
	}))
	defer server.Close()

	for i := 0; i < 2; i++ {
		body, _ := json.Marshal(map[string]any{"match_id": 1035037, "origin_city": "London"})
		resp, err := http.Post(server.URL+"/api/calculate-trip", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
		var res struct {
			Costs struct {
				Total float64 `json:"total"`
			} `json:"costs"`
		}
		err = json.NewDecoder(resp.Body).Decode(&res)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("Decode %d: %v", i+1, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Request %d status = %d", i+1, resp.StatusCode)
		}
		if res.Costs.Total != 470 {
			t.Errorf("Request %d total = %v, want 470", i+1, res.Costs.Total)
		}
	}

	if got := mock.PathCount(testutil.PathFootballFixtures); got != 1 {
		t.Errorf("Upstream fixture requests = %d, want 1", got)
	}

	resp, err := http.Get(server.URL + "/api/admin/stats")
	if err != nil {
		t.Fatalf("Stats request failed: %v", err)
	}
	var stats ledger.Stats
	err = json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("Decode stats: %v", err)
	}
	want := ledger.Stats{Total: 6, Hits: 1, Misses: 5, HitRate: 16.67}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/admin/cache/clear", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Clear request failed: %v", err)
	}
	var cleared struct {
		Cleared int64 `json:"cleared"`
	}
	json.NewDecoder(resp.Body).Decode(&cleared)
	resp.Body.Close()
	if cleared.Cleared != 1 {
		t.Errorf("Cleared = %d, want 1", cleared.Cleared)
	}
}

func TestTripFlow_Redis(t *testing.T) {
	client, addr := setupRedis(t)

	tripFlow(t, map[string]string{
		"CACHE_BACKEND":  "redis",
		"LEDGER_BACKEND": "redis",
		"REDIS_ADDR":     addr,
	})

	// The quota headers of the fixture response are shared through Redis.
	remaining, err := client.HGet(context.Background(), "tripcost:quota:football", "remaining").Int()
	if err != nil {
		t.Fatalf("Quota state not stored: %v", err)
	}
	if remaining != 90 {
		t.Errorf("remaining = %d, want 90", remaining)
	}
}

func TestTripFlow_Postgres(t *testing.T) {
	_, dsn := setupPostgres(t)

	tripFlow(t, map[string]string{
		"CACHE_BACKEND":  "postgres",
		"LEDGER_BACKEND": "postgres",
		"DATABASE_URL":   dsn,
	})
}

// TestQuotaBlockShared verifies that a critical quota recorded by one
// process blocks requests from another.
func TestQuotaBlockShared(t *testing.T) {
	client, _ := setupRedis(t)

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set(ratelimit.HeaderRequestsRemaining, "3")
		w.Header().Set(ratelimit.HeaderRequestsLimit, "100")
		w.Write([]byte(testutil.FixturesBody(madridDerby())))
	}))
	defer server.Close()

	newClient := func() *football.Client {
		c, err := football.New(football.Config{
			APIKey:    "key",
			BaseURL:   server.URL,
			UserAgent: "TripCost/1.0 (integration)",
			Quota: ratelimit.NewTracker(ratelimit.Config{
				Upstream: "football",
				Redis:    client,
			}, zerolog.Nop()),
			Retry: upstream.NoRetryPolicy(),
		})
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		return c
	}

	ctx := context.Background()
	if _, err := newClient().FixtureDetails(ctx, 1035037); err != nil {
		t.Fatalf("First request failed: %v", err)
	}

	_, err := newClient().FixtureDetails(ctx, 1035037)
	if !upstream.IsRateLimited(err) {
		t.Errorf("Expected quota block, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Upstream hits = %d, want 1", hits.Load())
	}
}

// TestRetry5xxErrors checks that transient upstream failures are retried
// before the fixture is returned.
func TestRetry5xxErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow retry test in short mode")
	}

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(testutil.FixturesBody(madridDerby())))
	}))
	defer server.Close()

	c, err := football.New(football.Config{
		APIKey:    "key",
		BaseURL:   server.URL,
		UserAgent: "TripCost/1.0 (integration)",
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	f, err := c.FixtureDetails(context.Background(), 1035037)
	if err != nil {
		t.Fatalf("FixtureDetails failed: %v", err)
	}
	if f == nil || f.City != "Madrid" {
		t.Errorf("fixture = %+v", f)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}
