package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"avtoledger/internal/amqp"
	"avtoledger/internal/config"
	"avtoledger/internal/ledger"
	applog "avtoledger/internal/log"
	"avtoledger/internal/storage"
	"avtoledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	applog.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		slog.Error("AMQP_URL is required for the reconcile worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	bus, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Error("failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	// The worker never publishes, so the service gets no bus of its own.
	svc := ledger.NewService(repo, nil, cfg.StorageTimeout)
	reconciler := worker.NewReconciler(svc, cfg.ReconcileRepair)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting reconcile worker",
		"queue", cfg.AMQPQueue,
		"sweep_interval", cfg.ReconcileInterval,
		"repair", cfg.ReconcileRepair)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reconciler.Run(gctx, bus, cfg.ReconcileInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("worker stopped gracefully")
}
