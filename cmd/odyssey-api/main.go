package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"odyssey/internal/api"
	"odyssey/internal/auth"
	"odyssey/internal/config"
	"odyssey/internal/db"
	"odyssey/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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

	gameSvc := game.NewService(pool, game.DefaultCatalogSet(), logger).WithLockTimeout(cfg.LockTimeout)
	if cfg.StartupSeed {
		if err := gameSvc.SeedDefaults(ctx); err != nil {
			logger.Error("seed defaults failed", "err", err)
			os.Exit(1)
		}
	}

	var verifier auth.Verifier
	var loginClient *auth.Client
	if cfg.DisableLogin {
		logger.Warn("login disabled, dev accounts active")
		if err := gameSvc.SeedDevUsers(ctx); err != nil {
			logger.Error("seed dev users failed", "err", err)
			os.Exit(1)
		}
		verifier = auth.NewDevVerifier()
	} else {
		loginClient = auth.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		verifier = loginClient
	}

	server := api.New(cfg, logger, verifier, loginClient, gameSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("odyssey api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
