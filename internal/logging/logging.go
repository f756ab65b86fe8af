package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the process-wide slog default: text on stderr, threshold
// taken from LOG_LEVEL. Both the relay and the CLI call this once at startup.
func Init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: Level(os.Getenv("LOG_LEVEL")),
	})
	slog.SetDefault(slog.New(handler))
}

// Level maps a LOG_LEVEL value to its slog level. Unset or unrecognized
// values fall back to Info so a misconfigured deployment still logs joins
// and denials.
func Level(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "dev", "development":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "prod", "production":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
