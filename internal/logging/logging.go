// Package logging builds the slog logger shared by every command.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options selects the handler, level, and destination for the process logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Output string // stdout or stderr
}

// New builds a logger from the given options. Console output uses tint for
// readable colored lines; json output is meant for log shippers.
func New(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	var writer io.Writer
	switch opts.Output {
	case "stderr":
		writer = os.Stderr
	default:
		writer = os.Stdout
	}

	var handler slog.Handler
	switch opts.Format {
	case "json":
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(writer, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}

	return slog.New(handler)
}

// ParseLevel converts a level string to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Silent returns a logger that discards everything. Used by commands whose
// stdout is the user-facing output, and by tests.
func Silent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
