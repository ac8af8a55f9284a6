// Command vitrine serves the showcase site's API in front of a hosted
// Postgres project, falling back to its REST endpoint when the direct
// connection is down.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ashita-ai/vitrine"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("VITRINE_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := vitrine.New(
		vitrine.WithVersion(version),
		vitrine.WithLogger(logger),
	)
	if err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	if err := app.Run(ctx); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
