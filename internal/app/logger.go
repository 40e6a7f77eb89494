package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a stdout logger shaped by LOG_FORMAT.
func NewLogger(cfg *Config) *slog.Logger {
	return NewLoggerTo(os.Stdout, cfg)
}

// NewLoggerTo writes JSON when LOG_FORMAT=json and text otherwise.
func NewLoggerTo(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
