// Package worker keeps the Google Sheet mirror in step with the store.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"finance/internal/amqp"
	applog "finance/internal/log"
	"finance/internal/services"
)

// Exporter rewrites the whole sheet. *services.ExportService implements it.
type Exporter interface {
	Export(ctx context.Context) (services.ExportResult, error)
}

// SyncWorker re-exports the transaction list whenever an event arrives. Every
// export replaces the sheet, so a duplicated or reordered event is harmless.
type SyncWorker struct {
	exporter Exporter
	logger   *applog.Logger

	mu       sync.Mutex
	lastSync time.Time
	syncs    int64
	failures int64
}

func NewSyncWorker(exporter Exporter, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		exporter: exporter,
		logger:   logger.WithComponent(applog.ComponentSheets),
	}
}

// HandleEvent processes a single transaction event from AMQP. A failed event
// is dropped by the consumer; the next event or periodic sync catches up.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		"event", ev.Event,
		applog.FieldTransactionID, ev.ID,
		"timestamp", ev.Timestamp)

	if err := w.sync(ctx, "event"); err != nil {
		return fmt.Errorf("sync after %s %d: %w", ev.Event, ev.ID, err)
	}
	return nil
}

// StartupSync exports once so the sheet catches up with anything missed
// while the worker was down.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	if err := w.sync(ctx, "startup"); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	return nil
}

// PeriodicSync exports every interval until ctx is done. Failures are logged
// and retried on the next tick. It is a backup in case events are lost.
func (w *SyncWorker) PeriodicSync(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = w.sync(ctx, "periodic")
		}
	}
}

func (w *SyncWorker) sync(ctx context.Context, trigger string) error {
	start := time.Now()
	result, err := w.exporter.Export(ctx)
	if err != nil {
		atomic.AddInt64(&w.failures, 1)
		w.logger.ErrorContext(ctx, "Sheet sync failed",
			"trigger", trigger,
			applog.FieldError, err)
		return err
	}

	w.mu.Lock()
	w.lastSync = time.Now()
	w.mu.Unlock()
	atomic.AddInt64(&w.syncs, 1)

	w.logger.InfoContext(ctx, "Sheet synced",
		"trigger", trigger,
		applog.FieldCount, result.Count,
		applog.FieldSheetsRange, result.Ref,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Stats reports completed and failed syncs and when the last one finished.
func (w *SyncWorker) Stats() (syncs, failures int64, last time.Time) {
	w.mu.Lock()
	last = w.lastSync
	w.mu.Unlock()
	return atomic.LoadInt64(&w.syncs), atomic.LoadInt64(&w.failures), last
}
