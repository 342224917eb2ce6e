// Package clog supplies the structured logger used on the fatal paths
// of the page allocator and the arena. No other events are logged, and
// it is never used on the hot Alloc/Free path.
package clog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// L returns the module-wide logger, built on first use from the
// CALLOCATORS_LOG_FORMAT environment variable ("console" for
// human-readable output; anything else, including unset, for JSON).
func L() zerolog.Logger {
	once.Do(initLogger)
	return logger
}

func initLogger() {
	var w io.Writer = os.Stderr
	if os.Getenv("CALLOCATORS_LOG_FORMAT") == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger = zerolog.New(w).With().Timestamp().Str("component", "callocators").Logger()
}
