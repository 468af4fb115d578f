package upstream

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// RetryPolicy selects a RetryConfig per error class.
type RetryPolicy map[ErrorClass]RetryConfig

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DefaultRetryPolicy keeps retries short: a trip estimate is interactive
// and every wrapper already has an empty-result fallback.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ErrorClassServer: {
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        4 * time.Second,
			BackoffMultiplier: 2.0,
		},
		ErrorClassRateLimit: {
			MaxAttempts:       2,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		},
		ErrorClassNetwork: {
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// NoRetryPolicy makes every class fail on the first error.
func NoRetryPolicy() RetryPolicy {
	once := RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	return RetryPolicy{
		ErrorClassServer:    once,
		ErrorClassRateLimit: once,
		ErrorClassNetwork:   once,
	}
}

// For returns the configuration for class, or DefaultRetryConfig.
func (p RetryPolicy) For(class ErrorClass) RetryConfig {
	if cfg, ok := p[class]; ok && cfg.MaxAttempts > 0 {
		return cfg
	}
	return DefaultRetryConfig()
}

// attemptFunc performs one attempt and classifies its failure.
type attemptFunc func() (ErrorClass, error)

// retryWithBackoff executes fn with exponential backoff retry logic.
// The retry budget is taken from the class of the first failure. It respects
// context cancellation and adds jitter to prevent thundering herd.
func retryWithBackoff(ctx context.Context, upstream string, policy RetryPolicy, logger zerolog.Logger, fn attemptFunc) error {
	var (
		lastErr error
		class   ErrorClass
		config  RetryConfig
		backoff time.Duration
	)

	for attempt := 1; ; attempt++ {
		var err error
		class, err = fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(class)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(class) {
			return lastErr
		}

		if attempt == 1 {
			config = policy.For(class)
			backoff = config.InitialBackoff
		}
		if attempt >= config.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(upstream, string(class)).Inc()

		// Add jitter (±20% randomness)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(upstream, string(class)).Observe(jitter.Seconds())

		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(upstream, string(class)).Inc()
	logger.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
