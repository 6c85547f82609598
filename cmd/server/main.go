package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"credreg/internal/app"
	"credreg/internal/platform/config"
	"credreg/internal/platform/httpserver"
	"credreg/internal/platform/logger"
)

// main loads configuration, builds the registry and serves until SIGINT or
// SIGTERM. Wiring lives in internal/app.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	registry, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer registry.Close()

	srv := httpserver.New(cfg.Addr, registry.Handler)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting credreg", "addr", cfg.Addr, "version", app.Version)
		return httpserver.Run(gctx, srv, 10*time.Second)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
