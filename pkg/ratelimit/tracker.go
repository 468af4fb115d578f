package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tripcost_upstream_quota_remaining",
		Help: "Requests remaining in the upstream's current quota window",
	}, []string{"upstream"})

	quotaBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcost_upstream_quota_blocks_total",
		Help: "Total number of requests blocked due to a critical quota",
	}, []string{"upstream"})

	quotaWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcost_upstream_quota_warnings_total",
		Help: "Total number of requests sent while the quota was low",
	}, []string{"upstream"})
)

// api-sports quota headers.
const (
	HeaderRequestsRemaining = "x-ratelimit-requests-remaining"
	HeaderRequestsLimit     = "x-ratelimit-requests-limit"
)

const (
	fieldRemaining  = "remaining"
	fieldLimit      = "limit"
	fieldLastUpdate = "last_update"
)

// Config configures a Tracker.
type Config struct {
	// Upstream labels metrics and the Redis key.
	Upstream string

	// RemainingHeader and LimitHeader name the quota headers.
	RemainingHeader string
	LimitHeader     string

	Thresholds Thresholds

	// Redis shares state between processes. Optional: without it the
	// state lives in memory.
	Redis redis.UniversalClient
}

// Tracker monitors an upstream's quota and gates requests.
type Tracker struct {
	cfg    Config
	key    string
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	local *QuotaState
}

// NewTracker creates a new quota tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.RemainingHeader == "" {
		cfg.RemainingHeader = HeaderRequestsRemaining
	}
	if cfg.LimitHeader == "" {
		cfg.LimitHeader = HeaderRequestsLimit
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Tracker{
		cfg:    cfg,
		key:    "tripcost:quota:" + cfg.Upstream,
		logger: logger.With().Str("upstream", cfg.Upstream).Logger(),
		now:    time.Now,
	}
}

// GetState returns the last known quota state.
// Returns a default healthy state if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	if t.cfg.Redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.local == nil {
			return t.defaultState(), nil
		}
		s := *t.local
		return &s, nil
	}

	fields, err := t.cfg.Redis.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}
	if len(fields) == 0 {
		t.logger.Debug().Msg("No quota state in Redis, returning default healthy state")
		return t.defaultState(), nil
	}

	state := &QuotaState{}
	if state.Remaining, err = strconv.Atoi(fields[fieldRemaining]); err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	if v := fields[fieldLimit]; v != "" {
		if state.Limit, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("parse limit: %w", err)
		}
	}
	if v := fields[fieldLastUpdate]; v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
		state.LastUpdate = time.UnixMilli(ms)
	}
	state.UpdateHealth(t.cfg.Thresholds)
	return state, nil
}

func (t *Tracker) defaultState() *QuotaState {
	// Assume healthy until we get real data
	return &QuotaState{
		Remaining:  t.cfg.Thresholds.Healthy * 2,
		LastUpdate: t.now(),
		IsHealthy:  true,
	}
}

// UpdateFromHeaders records the quota reported in a response.
// Responses without the remaining header leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(t.cfg.RemainingHeader)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.cfg.RemainingHeader, err)
	}

	limit := 0
	if limitStr := headers.Get(t.cfg.LimitHeader); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", t.cfg.LimitHeader, err)
		}
	}

	state := &QuotaState{
		Remaining:  remain,
		Limit:      limit,
		LastUpdate: t.now(),
	}
	state.UpdateHealth(t.cfg.Thresholds)

	if t.cfg.Redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
	} else {
		err := t.cfg.Redis.HSet(ctx, t.key,
			fieldRemaining, remain,
			fieldLimit, limit,
			fieldLastUpdate, state.LastUpdate.UnixMilli(),
		).Err()
		if err != nil {
			return fmt.Errorf("store quota state in redis: %w", err)
		}
	}

	quotaRemaining.WithLabelValues(t.cfg.Upstream).Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock(t.cfg.Thresholds):
		t.logger.Error().
			Int("quota_remaining", remain).
			Msg("Upstream quota CRITICAL - requests will be blocked")
	case state.NeedsWarning(t.cfg.Thresholds):
		t.logger.Warn().
			Int("quota_remaining", remain).
			Msg("Upstream quota low")
	default:
		t.logger.Debug().
			Int("quota_remaining", remain).
			Int("quota_limit", limit).
			Msg("Upstream quota updated")
	}

	return nil
}

// ErrQuotaExhausted is returned when the tracker refuses a request.
var ErrQuotaExhausted = errors.New("upstream quota exhausted")

// ShouldAllowRequest checks whether a request may be sent.
// Returns false when the remaining quota is below the critical threshold.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock(t.cfg.Thresholds) {
		t.logger.Error().
			Int("quota_remaining", state.Remaining).
			Msg("Upstream quota critical - blocking request")
		quotaBlocksTotal.WithLabelValues(t.cfg.Upstream).Inc()
		return false, nil
	}

	if state.NeedsWarning(t.cfg.Thresholds) {
		quotaWarningsTotal.WithLabelValues(t.cfg.Upstream).Inc()
	}

	return true, nil
}
