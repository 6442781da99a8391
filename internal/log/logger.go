// Package log configures the process-wide slog logger and provides the HTTP
// request logging middleware.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler at the given level as the slog default.
// Unknown levels fall back to info.
func Setup(level string) {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
