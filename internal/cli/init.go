// Package cli provides common CLI initialization utilities shared by
// cmd/saldo, cmd/saldo-worker and cmd/saldoctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/config"
	"saldo/internal/events"
	applog "saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/services"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	return SetupLoggerTo(os.Stdout, cfg, component)
}

// SetupLoggerTo is SetupLogger writing to w.
func SetupLoggerTo(w io.Writer, cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Output = w
	lc.Component = component
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LedgerDeps is everything needed to serve the ledger, built from config.
type LedgerDeps struct {
	Backend   backend.Config
	Ledger    *services.LedgerService
	Publisher events.Publisher

	caches *cache.Manager
}

// Close stops cache cleanup and closes the ledger.
func (d *LedgerDeps) Close() error {
	if d.caches != nil {
		d.caches.Stop()
		d.caches = nil
	}
	return d.Ledger.Close()
}

// NewLedger opens the configured store and publisher and wires them into a
// LedgerService. Close releases all of it.
func NewLedger(ctx context.Context, cfg *config.Config, factory backend.Factory, m *metrics.Metrics) (*LedgerDeps, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}

	st, err := factory.CreateStore(ctx, bc)
	if err != nil {
		return nil, err
	}
	pub, err := factory.CreatePublisher(bc)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}

	keywords := cache.NewLRUCache[[]string](256, 10*time.Minute)
	caches := cache.NewManager()
	caches.Register(keywords)
	caches.StartCleanup(5 * time.Minute)

	svc := services.NewLedgerService(st, services.Options{
		InitialTotal:          cfg.InitialBalance(),
		Location:              bc.Location,
		AllowMissingOperation: cfg.LegacyOperationDefault,
		HistoryPageDays:       cfg.HistoryPageDays,
		Publisher:             pub,
		PublisherName:         bc.Events.String(),
		Keywords:              keywords,
		Metrics:               m,
	})
	return &LedgerDeps{Backend: bc, Ledger: svc, Publisher: pub, caches: caches}, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// GracefulShutdown runs cleanup with a deadline once ctx is done. It returns
// an error when cleanup fails or does not finish within timeout.
func GracefulShutdown(ctx context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context) error) error {
	<-ctx.Done()
	logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cleanup(shutdownCtx) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Shutdown complete", applog.FieldOperation, applog.OpShutdown)
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached", applog.FieldOperation, applog.OpShutdown)
		return shutdownCtx.Err()
	}
}
