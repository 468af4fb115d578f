// Command worker runs the maintenance queue: expired cache entries are
// swept on a schedule through asynq, so several API replicas sharing one
// store do not all sweep at once.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tripcost/internal/app"
	"github.com/Sternrassler/tripcost/internal/config"
	"github.com/Sternrassler/tripcost/internal/jobs"
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
		logger.Fatal().Err(err).Msg("Worker failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Cache.Backend == config.BackendMemory {
		logger.Warn().Msg("CACHE_BACKEND=memory: the worker sweeps its own private store")
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			jobs.QueueMaintenance: 1,
		},
		Logger: asynqLogger{logger.With().Str("component", "asynq").Logger()},
	})
	mux := asynq.NewServeMux()
	jobs.NewSweeper(a.Store, logging.NewLogger("sweeper")).Register(mux)

	if err := srv.Start(mux); err != nil {
		return err
	}
	defer srv.Shutdown()

	if cfg.Cache.SweepInterval > 0 {
		scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			Logger: asynqLogger{logger.With().Str("component", "scheduler").Logger()},
		})
		id, err := jobs.Schedule(scheduler, cfg.Cache.SweepInterval)
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Shutdown()
		logger.Info().Str("entry_id", id).Dur("interval", cfg.Cache.SweepInterval).Msg("Sweep scheduled")
	}

	logger.Info().
		Str("redis", cfg.Redis.Addr).
		Int("concurrency", cfg.WorkerConcurrency).
		Msg("Worker running")

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	return nil
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
