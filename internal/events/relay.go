package events

import (
	"context"
	"time"

	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/internal/metrics"
	"go.uber.org/zap"
)

// Sender publishes one serialized event.
type Sender interface {
	Publish(ctx context.Context, eventType, eventID string, body []byte) error
}

// OutboxStore is the relay's view of the outbox table.
type OutboxStore interface {
	PendingBatch(ctx context.Context, limit int) ([]db.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []uint) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	CountPending(ctx context.Context) (int64, error)
}

// Relay moves committed outbox events to the broker in insertion order.
type Relay struct {
	store     OutboxStore
	sender    Sender
	log       *zap.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

func NewRelay(store OutboxStore, sender Sender, log *zap.Logger, m *metrics.Metrics, interval time.Duration, batchSize int) *Relay {
	return &Relay{
		store:     store,
		sender:    sender,
		log:       log,
		metrics:   m,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run flushes the outbox every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Outbox relay started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("Outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch and reports how many events were confirmed.
// A failed event stops the batch so later events are not sent ahead of it.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	batch, err := r.store.PendingBatch(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := make([]uint, 0, len(batch))
	for _, event := range batch {
		if err := r.sender.Publish(ctx, event.EventType, event.EventID, event.Payload); err != nil {
			r.metrics.OutboxFailed(1)
			r.log.Warn("Outbox publish failed",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			if markErr := r.store.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				r.log.Error("Failed to record outbox failure", zap.Error(markErr))
			}
			break
		}
		sent = append(sent, event.ID)
	}

	if err := r.store.MarkSent(ctx, sent); err != nil {
		return 0, err
	}
	r.metrics.OutboxPublished(len(sent))

	if pending, err := r.store.CountPending(ctx); err == nil {
		r.metrics.SetOutboxPending(pending)
	}
	return len(sent), nil
}
