package main

import (
	"log/slog"
	"os"

	"go-auth-webhook/internal/app"
	"go-auth-webhook/internal/logger"
)

func main() {
	// Console logger until the configured one replaces it in app.New.
	slog.SetDefault(slog.New(logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
