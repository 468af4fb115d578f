// Package jobs holds background work on the cache store.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tripcost/pkg/cache"
)

// TaskSweepExpired removes expired cache entries.
const TaskSweepExpired = "cache:sweep_expired"

// QueueMaintenance is the queue sweep tasks run on.
const QueueMaintenance = "maintenance"

var (
	sweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripcost_cache_swept_total",
		Help: "Expired cache entries removed by the sweeper",
	})

	sweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripcost_cache_sweep_failures_total",
		Help: "Sweeper runs that failed",
	})
)

// SweepPayload is the body of a TaskSweepExpired task.
type SweepPayload struct {
	RequestedAt int64 `json:"requested_at,omitempty"`
}

// NewSweepTask builds a sweep task.
func NewSweepTask(now time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepPayload{RequestedAt: now.Unix()})
	if err != nil {
		return nil, fmt.Errorf("marshal sweep payload: %w", err)
	}
	return asynq.NewTask(TaskSweepExpired, payload,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(time.Minute),
		asynq.Unique(time.Minute),
	), nil
}

// Sweeper clears expired entries from a store.
type Sweeper struct {
	store  cache.Store
	logger zerolog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(store cache.Store, logger zerolog.Logger) *Sweeper {
	return &Sweeper{store: store, logger: logger}
}

// Sweep runs one pass and returns the number of entries removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.store.ClearExpired(ctx)
	if err != nil {
		sweepFailuresTotal.Inc()
		return 0, fmt.Errorf("clear expired: %w", err)
	}
	sweptTotal.Add(float64(n))
	s.logger.Info().Int64("removed", n).Dur("duration", time.Since(start)).Msg("Swept expired cache entries")
	return n, nil
}

// ProcessTask implements asynq.Handler.
func (s *Sweeper) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if len(t.Payload()) > 0 {
		var p SweepPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			s.logger.Warn().Err(err).Msg("Bad sweep payload, dropping task")
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}
	_, err := s.Sweep(ctx)
	return err
}

// Run sweeps every interval until ctx is done. It is the in-process
// alternative to the asynq scheduler.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Cache sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Cache sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("Cache sweep failed")
			}
		}
	}
}

// Register wires the sweep handler into mux.
func (s *Sweeper) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskSweepExpired, s)
}

// Schedule registers a periodic sweep with scheduler.
func Schedule(scheduler *asynq.Scheduler, interval time.Duration) (string, error) {
	task, err := NewSweepTask(time.Now())
	if err != nil {
		return "", err
	}
	id, err := scheduler.Register(fmt.Sprintf("@every %s", interval), task)
	if err != nil {
		return "", fmt.Errorf("schedule sweep: %w", err)
	}
	return id, nil
}
