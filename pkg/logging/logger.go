// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs request flow and limiter waits.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs run start, tier detection and the run summary.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries, observation failures and quota clamps.
	LevelWarn LogLevel = "warn"

	// LevelError logs exhausted retries, input errors and recovered panics.
	LevelError LogLevel = "error"
)

// Context field names shared by every component.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldSeriesID  = "series_id"
	FieldOffset    = "offset"
	FieldAttempt   = "attempt"
	FieldErrorKind = "error_kind"
	FieldWait      = "wait"
)

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
// Results go to the sink, never to the log output, so stdout stays usable
// for JSONL when Output is left at its default.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewLogger creates a logger for a specific component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}

// NewRunLogger creates a component logger tagged with the run id, so every
// line of one harvest can be correlated with the records it pushed.
func NewRunLogger(component, runID string) zerolog.Logger {
	return log.With().
		Str(FieldComponent, component).
		Str(FieldRunID, runID).
		Logger()
}

// Log Level Guidelines
//
// DEBUG:
//   - Each FRED request (endpoint, offset)
//   - Rate limiter waits (wait, in_window)
//   - Per-page aggregation counts
//
// INFO:
//   - Run start with query summary and run_id
//   - Tier detection (paid or free) and the resolved quota
//   - Request after a successful retry (attempt)
//   - Run summary: pushed, total available, duration
//
// WARN:
//   - Retry scheduled (attempt, error_kind, backoff)
//   - Observation fetch failure for a series (series_id, error_kind)
//   - Free-tier clamp of maxItems
//
// ERROR:
//   - Retries exhausted for a search page (offset)
//   - Invalid query input
//   - Recovered panic in the orchestration loop (stack)
