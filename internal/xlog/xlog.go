// Package xlog wires the process-wide zerolog logger.
package xlog

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Init sets zerolog.TimeFieldFormat and returns a new logger at level; the
// global zerolog logger is left unchanged. Console output is used when
// stderr is a TTY, plain JSON lines otherwise.
func Init(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	logger = logger.Level(level)
	return logger
}
