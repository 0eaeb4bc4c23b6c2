package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/backend"
	"saldo/internal/cli"
	applog "saldo/internal/log"
	"saldo/internal/store"
	"saldo/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil, applog.ComponentWorker).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting saldo-worker", "events", cfg.EventsBackend)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)

	mirror, err := factory.CreateMirror(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize mirror", applog.FieldError, err)
		os.Exit(1)
	}

	// The store is only read, to reconcile entries whose events were missed.
	entries, err := factory.CreateStore(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize entry store", applog.FieldError, err)
		os.Exit(1)
	}

	consumer, err := factory.CreateConsumer(bc)
	if err != nil {
		logger.Error("Failed to initialize event consumer", applog.FieldError, err)
		_ = entries.Close()
		os.Exit(1)
	}

	w := worker.NewMirrorWorker(mirror, entries, cfg.InitialBalance(), logger)

	scope := store.DefaultScope
	if cfg.AuthEnabled() {
		scope = cfg.AuthUsername
	}

	// On startup, mirror anything that was missed while the worker was down.
	if res, err := w.Reconcile(ctx, scope); err != nil {
		logger.Error("Startup reconcile failed", applog.FieldError, err)
	} else {
		logger.Info("Startup reconcile completed",
			applog.FieldScope, scope,
			"checked", res.Checked,
			"appended", res.Appended,
			"dropped", res.Dropped)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Consume(gctx, w.HandleEntryRecorded)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return w.RunReconciler(gctx, cfg.SyncInterval, []string{scope})
	})
	g.Go(func() error {
		return cli.GracefulShutdown(gctx, logger, shutdownTimeout, func(context.Context) error {
			return errors.Join(consumer.Close(), entries.Close())
		})
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
