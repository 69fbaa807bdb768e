// Package logging builds the application's slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLogLevel parses a level name. Unknown names yield info.
func ParseLogLevel(s string) slog.Level {
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

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// Format is "text" or "json".
	Format string
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
}

// NewLogger creates a logger with the given configuration.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		h = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(h)
}

// WithComponent returns a logger with the component field set.
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	return l.With("component", component)
}
