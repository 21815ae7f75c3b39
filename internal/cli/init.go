// Package cli provides the finance command tree and the startup steps its
// commands share.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"finance/internal/amqp"
	"finance/internal/config"
	applog "finance/internal/log"
	"finance/internal/services"
	"finance/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// SetupLogger builds the process logger from LOG_LEVEL and makes it the
// slog default.
func SetupLogger(level string) (*applog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := applog.NewFromLevel(lvl)
	applog.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig reads the environment, after an optional .env file,
// and validates it.
func LoadAndValidateConfig(envFiles ...string) (*config.Config, error) {
	config.LoadEnvFile(envFiles...)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStorage opens the SQLite store and brings its schema up to date.
func OpenStorage(ctx context.Context, logger *applog.Logger, dbPath string) (*storage.Gateway, error) {
	gw, err := storage.Open(ctx, dbPath)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open storage",
			applog.FieldComponent, applog.ComponentStorage,
			applog.FieldError, err,
			"path", dbPath)
		return nil, err
	}
	return gw, nil
}

// ConnectPublisher returns the AMQP publisher, or nil when AMQP_URL is unset
// or the broker cannot be reached. Events are optional, so a broker outage
// never blocks startup.
func ConnectPublisher(ctx context.Context, cfg *config.Config, logger *applog.Logger) services.EventPublisher {
	if cfg.AMQPURL == "" {
		logger.InfoContext(ctx, "AMQP disabled, events will not be published")
		return nil
	}

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.WarnContext(ctx, "AMQP unavailable, continuing without events",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeNetwork)
		return nil
	}
	logger.InfoContext(ctx, "AMQP publisher connected",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type managedServer struct {
	name string
	addr string
	srv  server
}

// runServers serves until ctx is cancelled or one server fails, then shuts
// every server down within shutdownTimeout.
func runServers(ctx context.Context, logger *applog.Logger, servers ...managedServer) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, m := range servers {
		g.Go(func() error {
			logger.InfoContext(gctx, "Server listening",
				applog.FieldOperation, applog.OpStartup,
				"server", m.name,
				applog.FieldAddr, m.addr)
			if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", m.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, m := range servers {
			if err := m.srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s server shutdown: %w", m.name, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Servers stopped gracefully")
	return nil
}
