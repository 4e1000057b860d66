package repo

import (
	"context"
	"time"

	"github.com/stockledger/inventory/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxOutboxAttempts is how many failed publishes an event gets before it
// is parked as failed.
const MaxOutboxAttempts = 10

// OutboxRepository serves the event relay.
type OutboxRepository struct {
	db  *db.DB
	log *zap.Logger
}

func NewOutboxRepository(database *db.DB, logger *zap.Logger) *OutboxRepository {
	return &OutboxRepository{db: database, log: logger}
}

// PendingBatch returns up to limit unsent events in insertion order.
func (r *OutboxRepository) PendingBatch(ctx context.Context, limit int) ([]db.OutboxEvent, error) {
	var batch []db.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", db.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&batch).Error
	if err != nil {
		r.log.Error("Failed to load outbox batch", zap.Error(err))
		return nil, err
	}
	return batch, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&db.OutboxEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"status": db.OutboxStatusSent, "sent_at": now}).Error
}

// MarkFailed records a failed publish. The event stays pending until it
// has failed MaxOutboxAttempts times.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event db.OutboxEvent
		if err := tx.First(&event, id).Error; err != nil {
			return err
		}
		attempts := event.Attempts + 1
		status := db.OutboxStatusPending
		if attempts >= MaxOutboxAttempts {
			status = db.OutboxStatusFailed
			r.log.Warn("Outbox event parked after repeated failures",
				zap.String("event_id", event.EventID),
				zap.Int("attempts", attempts),
			)
		}
		return tx.Model(&db.OutboxEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
			"attempts":   attempts,
			"status":     status,
			"last_error": reason,
		}).Error
	})
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.OutboxEvent{}).Where("status = ?", db.OutboxStatusPending).Count(&n).Error
	return n, err
}
