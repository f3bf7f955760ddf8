package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/cinepass/cinepass/docs"
	"github.com/cinepass/cinepass/internal/app"
	"github.com/cinepass/cinepass/internal/config"
)

// @title CinePass API
// @version 1.0
// @description Movie ticketing backend: seat holds, bookings and payment settlement.
// @host localhost:8080
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
