// Package logging configures structured logging with log/slog.
// Copy this file to any Go project that uses log/slog.
//
// Usage:
//
//	logging.Setup("development")             // colored output, LOG_LEVEL env
//	logging.Setup("production")              // JSON output for log shippers
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures the default logger for the given environment at the level
// specified by the LOG_LEVEL env var (default: INFO). Production gets JSON
// output; anything else gets colored tint output.
func Setup(env string) {
	SetupWithLevel(env, levelFromEnv())
}

// SetupWithLevel configures the default logger at the given level.
func SetupWithLevel(env string, level slog.Level) {
	var handler slog.Handler
	if strings.ToLower(env) == "production" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	}
	slog.SetDefault(slog.New(handler))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
