package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/Freeeeeet/mentorship_slots/internal/app"
	"github.com/Freeeeeet/mentorship_slots/internal/config"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting mentorship slots service",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("timezone", cfg.Location.String()),
		zap.Bool("telegram_enabled", cfg.TelegramToken != ""),
		zap.Bool("cache_enabled", cfg.RedisURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}

	logger.Info("Service stopped")
}
