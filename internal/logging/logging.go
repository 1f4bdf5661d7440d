// Package logging builds the zerolog loggers used across the coupled
// solver. Components add their own fields (solver, case) on top of the
// logger returned here.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures NewLogger.
type Options struct {
	Level     string
	Format    string
	Component string
}

// NewLogger writes to w at the given level. The console format is meant
// for terminals, json for files and pipes.
func NewLogger(w io.Writer, opts Options) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	switch opts.Format {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q (available: %s, %s)", opts.Format, FormatConsole, FormatJSON)
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if opts.Component != "" {
		ctx = ctx.Str("component", opts.Component)
	}
	return ctx.Logger(), nil
}

// NewDefaultLogger is an info level console logger on stderr.
func NewDefaultLogger() zerolog.Logger {
	l, _ := NewLogger(os.Stderr, Options{Level: "info"})
	return l
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging: %w", err)
	}
	return level, nil
}

// EchoLevel maps a problem echo_level (0 quiet to 3 verbose) onto a level.
func EchoLevel(echo int) zerolog.Level {
	switch {
	case echo <= 0:
		return zerolog.WarnLevel
	case echo == 1:
		return zerolog.InfoLevel
	case echo == 2:
		return zerolog.DebugLevel
	}
	return zerolog.TraceLevel
}
