// Package logging configures a single process-wide structured logger used
// for diagnostics: startup failures, segment-corruption warnings, and
// subscriber-exception aborts. It deliberately does not format test
// summaries or progress output -- that is the CLI's job.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("OBJLOAD_LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
		With().
		Timestamp().
		Logger().
		Level(level)
}

// Log returns the process-wide logger.
func Log() *zerolog.Logger {
	return &logger
}

// SetLevel overrides the process-wide log level, e.g. from the -log-level flag.
func SetLevel(level zerolog.Level) {
	logger = logger.Level(level)
}
