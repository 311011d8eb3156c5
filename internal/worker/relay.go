package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// OutboxStore reads and acknowledges recorded ledger events
type OutboxStore interface {
	PendingEvents(ctx context.Context, limit int) ([]domain.LedgerEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// Publisher sends ledger events downstream
type Publisher interface {
	Publish(ctx context.Context, events []domain.LedgerEvent) error
}

// RelayMetrics counts relay outcomes
type RelayMetrics interface {
	EventsPublished(n int)
	EventsFailed(n int)
}

// OutboxRelay periodically moves unpublished ledger events to the publisher
type OutboxRelay struct {
	store     OutboxStore
	publisher Publisher
	metrics   RelayMetrics
	config    *config.RelayConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewOutboxRelay creates a new relay worker. metrics may be nil.
func NewOutboxRelay(
	store OutboxStore,
	publisher Publisher,
	metrics RelayMetrics,
	cfg *config.RelayConfig,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		config:    cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background relay loop
func (w *OutboxRelay) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("outbox relay started", "interval", w.config.Interval, "batch_size", w.config.BatchSize)

	go w.run(ctx)
	return nil
}

// Stop stops the relay loop and waits for the current cycle to finish
func (w *OutboxRelay) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Info("outbox relay stopped")
	return nil
}

// IsRunning returns whether the relay is currently running
func (w *OutboxRelay) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *OutboxRelay) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("outbox relay cycle failed", "error", err)
			}
		}
	}
}

// RunOnce drains pending events batch by batch and returns how many were
// published. A batch is marked published only after the publisher accepts
// it, so a failure leaves it pending for the next cycle.
func (w *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	batchSize := w.config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	published := 0
	for {
		events, err := w.store.PendingEvents(ctx, batchSize)
		if err != nil {
			return published, fmt.Errorf("reading pending events: %w", err)
		}
		if len(events) == 0 {
			return published, nil
		}

		if err := w.publisher.Publish(ctx, events); err != nil {
			if w.metrics != nil {
				w.metrics.EventsFailed(len(events))
			}
			return published, fmt.Errorf("publishing %d events: %w", len(events), err)
		}

		ids := make([]int64, len(events))
		for i, event := range events {
			ids[i] = event.ID
		}
		if err := w.store.MarkPublished(ctx, ids); err != nil {
			return published, fmt.Errorf("marking events published: %w", err)
		}

		published += len(events)
		if w.metrics != nil {
			w.metrics.EventsPublished(len(events))
		}
		w.logger.Debug("relayed ledger events", "count", len(events))

		if len(events) < batchSize {
			return published, nil
		}
	}
}
