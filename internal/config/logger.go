package config

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger in production and a text logger
// elsewhere.  LOG_LEVEL accepts debug, info, warn or error.
func NewLogger(env string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(envStr("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
