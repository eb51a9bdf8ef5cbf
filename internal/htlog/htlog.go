// Package htlog sets up the host's stderr-only structured logger.
package htlog

import (
	"log/slog"
	"os"
)

// New builds a text-handler logger writing to stderr at the given level.
// Stdout is reserved for the event stream and command replies; diagnostics
// never go there.
func New(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetDefault installs a stderr text-handler logger as slog's package default.
func SetDefault(level slog.Level) *slog.Logger {
	logger := New(level)
	slog.SetDefault(logger)
	return logger
}
