package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/tripcost/internal/api"
	"github.com/Sternrassler/tripcost/internal/app"
	"github.com/Sternrassler/tripcost/internal/config"
	"github.com/Sternrassler/tripcost/internal/jobs"
	"github.com/Sternrassler/tripcost/pkg/football"
	"github.com/Sternrassler/tripcost/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Setup(logging.DefaultConfig())
		boot.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Cache.SweepInterval > 0 {
		sweeper := jobs.NewSweeper(a.Store, logging.NewLogger("sweeper"))
		go sweeper.Run(ctx, cfg.Cache.SweepInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(a, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting tripcost server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newHandler(a *app.App, logger zerolog.Logger) http.Handler {
	return api.New(api.Options{
		Store:       a.Store,
		Ledger:      a.Ledger,
		Fixtures:    a.Fixtures,
		Calculator:  a.Calculator,
		Leagues:     football.TopLeagues(),
		Identity:    a.Identity,
		RequireAuth: a.Config.Auth.Required,
		Logger:      logger,
	})
}
