// Package logging builds the process-wide slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"cropadvisor/internal/config"
)

// ParseLevel maps a LOG_LEVEL value to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to stderr. Local development gets the
// colourised tint handler; every other environment logs JSON.
func New(cfg *config.Config, app string) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg, app)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg *config.Config, app string) *slog.Logger {
	lvl := ParseLevel(cfg.LogLevel)

	if cfg.IsLocal() {
		h := tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", app)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(h).With(
		"app", app,
		"version", cfg.Build.Version,
		"env", cfg.Environment,
	)
}
