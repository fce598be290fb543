package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultRedactKeys are attribute keys whose values never reach a sink.
var DefaultRedactKeys = []string{"code", "otp", "code_hash", "pepper"}

type Config struct {
	Service string
	Version string
	Env     string // e.g. "dev", "prod"
	Level   string // e.g. "debug", "info", "warn", "error"
	Format  string // e.g. "json", "text"

	// Output defaults to os.Stdout.
	Output io.Writer
	// Handlers receive every record alongside the primary handler, e.g. an
	// OpenTelemetry log bridge.
	Handlers []slog.Handler
	// RedactKeys defaults to DefaultRedactKeys.
	RedactKeys []string
}

// New returns a configured slog.Logger instance and installs it as the
// default logger.
func New(cfg Config) *slog.Logger {
	var handler slog.Handler

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.Env == "dev",
		Level:     parseLevel(cfg.Level),
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Handlers) > 0 {
		handler = Fanout(append([]slog.Handler{handler}, cfg.Handlers...)...)
	}

	keys := cfg.RedactKeys
	if keys == nil {
		keys = DefaultRedactKeys
	}
	handler = Redact(handler, keys...)

	logger := slog.New(handler).With(
		"service", cfg.Service,
		"version", cfg.Version,
		"env", cfg.Env,
	)

	slog.SetDefault(logger)
	return logger
}

// parseLevel maps a string to slog.Level.
func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
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
