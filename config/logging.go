package config

import (
	"io"
	"log/slog"
	"os"
)

// Logger builds a slog.Logger from the logging section. Unknown values fall
// back to the defaults, since Validate has already rejected them on any
// loaded config.
func (c LoggingConfig) Logger() *slog.Logger {
	return c.loggerTo(os.Stderr)
}

func (c LoggingConfig) loggerTo(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
