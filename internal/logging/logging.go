// Package logging installs the process-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// NewHandler returns a JSON handler, or a colored console handler when pretty
// is set.
func NewHandler(w io.Writer, level slog.Level, pretty bool) slog.Handler {
	if !pretty {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return log.NewWithOptions(w, log.Options{
		Level:           charmLevel(level),
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
}

// Setup installs the handler as slog's default and returns the logger.
func Setup(w io.Writer, level string, pretty bool) *slog.Logger {
	logger := slog.New(NewHandler(w, ParseLevel(level), pretty))
	slog.SetDefault(logger)
	return logger
}

func charmLevel(level slog.Level) log.Level {
	switch {
	case level <= slog.LevelDebug:
		return log.DebugLevel
	case level <= slog.LevelInfo:
		return log.InfoLevel
	case level <= slog.LevelWarn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
