// Package logger provides structured logging setup for CareMesh.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/CareMesh/internal/config"
)

const asyncChanSize = 1024

// level is shared by every handler New creates, so a config reload can
// adjust verbosity without recreating the logger.
var level = new(slog.LevelVar)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record.
// The returned Closer flushes buffered records in async mode; in sync mode
// it is a no-op.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	level.Set(parseLevel(cfg.Level))

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	if cfg.Async {
		async := NewAsyncHandler(handler, asyncChanSize)
		return slog.New(async).With("service", cfg.Service), async
	}

	return slog.New(handler).With("service", cfg.Service), nopCloser{}
}

// SetLevel adjusts the level of every logger created by New. Unknown names
// fall back to info, same as New.
func SetLevel(s string) {
	level.Set(parseLevel(s))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
