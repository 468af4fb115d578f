// Package logging configures zerolog for the tripcost binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace adds per-entry cache store traffic.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Service is attached to every record as the "service" field.
const Service = "tripcost"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", Service).
		Logger()

	log.Logger = logger
	return logger
}

func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger from the global one, tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels
//
// Debug: per-lookup detail
//   - cache-aside hit/miss with key and category
//   - quota state updates, upstream 2xx responses
//   - trip totals with lead time
//
// Info: lifecycle
//   - startup, wiring summary, shutdown
//   - sweeps that removed entries, scheduled jobs
//
// Warn: degraded but serving
//   - provider failures absorbed by the cache-aside layer
//   - cache store errors treated as misses
//   - retries, low quota, estimate fallbacks
//   - ledger records dropped on a full queue
//
// Error: needs attention
//   - retries exhausted, quota blocks
//   - store unreachable on /ready, sweep failures
//
// Fields
//   - component: emitting package ("cacheaside", "ledger", "sweeper", ...)
//   - upstream: "football", "amadeus", "booking"
//   - key, category: cache entry
//   - fixture_id, origin, city: trip lookups
//   - actor, req_id: set per HTTP request
//   - error_class: client, server, rate_limit, network, decode
//   - quota_remaining: api-sports requests left today
