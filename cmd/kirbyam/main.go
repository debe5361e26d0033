// Command kirbyam checks the Kirby & The Amazing Mirror world data, keeps
// the published id ledger honest and generates per-player patch files.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrWong99/kirbyam/internal/config"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger creates a [*slog.Logger] writing text to stderr at the given
// level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
