package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"odyssey/internal/config"
	"odyssey/internal/db"
	"odyssey/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	svc := game.NewService(pool, game.DefaultCatalogSet(), logger)

	sweep := func() {
		closed, completed, err := svc.SweepGames(ctx)
		if err != nil {
			logger.Error("sweep failed", "err", err)
			return
		}
		if closed > 0 || completed > 0 {
			logger.Info("sweep complete", "closed", closed, "completed", completed)
		}
	}

	if strings.EqualFold(strings.TrimSpace(os.Getenv("ODYSSEY_WORKER_RUN_ONCE")), "true") {
		sweep()
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.SweepEvery)
	defer ticker.Stop()

	logger.Info("worker started", "sweep_every", cfg.SweepEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
