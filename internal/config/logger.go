package config

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide structured logger for the API and worker
// binaries. Output is JSON on stdout; source locations are attached at debug
// and error levels, where they are worth the extra bytes per record.
func (c *LoggerConfig) NewLogger() *slog.Logger {
	level := parseLevel(c.Level)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug || level == slog.LevelError,
	})

	return slog.New(handler)
}

// parseLevel maps a configured level name to slog, defaulting to info on
// anything unrecognized.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
