package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the process-wide slog logger. ENVIRONMENT=production emits
// JSON lines; anything else emits text. LOG_LEVEL (debug, info, warn, error)
// overrides the environment's default level.
func Init() {
	production := strings.EqualFold(os.Getenv("ENVIRONMENT"), "production")

	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(raw)); err == nil {
			level = parsed
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if production {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "healthbot"))
}

// WithUser scopes a logger to one incoming message
func WithUser(userID, channel string) *slog.Logger {
	return slog.With("user_id", userID, "channel", channel)
}

// WithStage scopes a logger to one pipeline stage
func WithStage(logger *slog.Logger, stage string) *slog.Logger {
	return logger.With("stage", stage)
}
