package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/tripcost/internal/app"
	"github.com/Sternrassler/tripcost/internal/config"
	"github.com/Sternrassler/tripcost/internal/testutil"
)

func setupTestRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return host + ":" + port.Port(), func() { redisC.Terminate(ctx) }
}

func buildApp(t *testing.T, environ map[string]string) *app.App {
	t.Helper()
	cfg, err := config.LoadFrom(environ)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	a, err := app.Build(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	body, _ := io.ReadAll(w.Result().Body)
	return w.Code, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	h := newHandler(buildApp(t, map[string]string{}), zerolog.Nop())

	status, body := get(t, h, "/health")
	if status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", status)
	}
	if !strings.Contains(body, `"ok"`) {
		t.Errorf("Expected ok body, got %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(buildApp(t, map[string]string{}), zerolog.Nop())

	status, body := get(t, h, "/metrics")
	if status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", status)
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
}

func TestReadyEndpoint_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	addr, cleanup := setupTestRedis(t)
	defer cleanup()

	a := buildApp(t, map[string]string{
		"CACHE_BACKEND":  "redis",
		"LEDGER_BACKEND": "redis",
		"REDIS_ADDR":     addr,
	})
	h := newHandler(a, zerolog.Nop())

	t.Run("ready", func(t *testing.T) {
		status, _ := get(t, h, "/ready")
		if status != http.StatusOK {
			t.Errorf("Expected status 200, got %d", status)
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		a.Redis.Close()

		status, _ := get(t, h, "/ready")
		if status != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", status)
		}
	})
}

func TestRun_Shutdown(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	cfg, err := config.LoadFrom(map[string]string{
		"PORT":                 "0",
		"FOOTBALL_BASE_URL":    mock.URL(),
		"CACHE_SWEEP_INTERVAL": "10ms",
	})
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zerolog.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
