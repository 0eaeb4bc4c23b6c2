package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/auth"
	"saldo/internal/backend"
	"saldo/internal/cli"
	apphttp "saldo/internal/http"
	applog "saldo/internal/log"
	"saldo/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil, applog.ComponentApp).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	m := metrics.New()
	deps, err := cli.NewLedger(ctx, cfg, backend.NewFactory(logger.Logger), m)
	if err != nil {
		logger.Error("Failed to initialize ledger", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	opts := apphttp.Options{
		Addr:               ":" + cfg.Port,
		Ledger:             deps.Ledger,
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if cfg.AuthEnabled() {
		opts.Sessions = auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies)
		opts.Authenticator = auth.NewCredentialsAuthenticator(cfg.AuthUsername, cfg.AuthPasswordHash, cfg.AuthDisplayName)
	} else {
		logger.Warn("Authentication disabled, every request uses the default scope")
	}
	srv := apphttp.NewServer(opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting saldo server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			"events", cfg.EventsBackend,
			"auth_enabled", cfg.AuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cli.GracefulShutdown(gctx, logger, shutdownTimeout, func(ctx context.Context) error {
			return errors.Join(srv.Shutdown(ctx), deps.Close())
		})
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
