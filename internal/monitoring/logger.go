// Package monitoring provides structured logging and Prometheus metrics
// for the broker process. Grounded on the teacher's
// internal/single/monitoring package (NewLogger, HandleMetrics).
package monitoring

import (
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig controls NewLogger's output.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, pretty
}

// NewLogger builds a zerolog.Logger with a timestamp, caller info, and a
// fixed "service" field, matching the teacher's logging conventions.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer = os.Stdout
	logger := zerolog.New(writer)
	if cfg.Format == "pretty" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger.With().
		Timestamp().
		Caller().
		Str("service", "topicbroker").
		Logger()
}

// LogPanic logs a recovered panic with a stack trace. Use in a deferred
// recover() at the top of any goroutine the caller spawns directly — the
// dispatcher's per-event handling, the accept loop's per-connection
// goroutines, and every per-connection read/write pump all do.
func LogPanic(logger zerolog.Logger, panicValue any, msg string) {
	logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack())).
		Msg(msg)
}
