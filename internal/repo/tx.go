package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stockledger/inventory/internal/apperr"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/internal/events"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// enqueue stores a domain event in the outbox inside tx, so it is
// relayed only if the surrounding mutation commits.
func enqueue(ctx context.Context, tx *gorm.DB, eventType string, aggregateID uint, payload interface{}) error {
	event := events.New(ctx, eventType, payload)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	row := &db.OutboxEvent{
		EventID:     event.EventID,
		EventType:   eventType,
		AggregateID: strconv.FormatUint(uint64(aggregateID), 10),
		Payload:     datatypes.JSON(body),
		Status:      db.OutboxStatusPending,
	}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}
	return nil
}

// first loads the row with the given id, translating a miss into notFound.
func first[T any](tx *gorm.DB, id uint, notFound error) (*T, error) {
	var row T
	if err := tx.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	return &row, nil
}

// lockFirst is first with the row held FOR UPDATE until tx ends, so
// concurrent reversals of the same row serialize.
func lockFirst[T any](tx *gorm.DB, id uint, notFound error) (*T, error) {
	return first[T](tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, notFound)
}

// deleteRow removes the row with the given id. A row already gone is
// reported as notFound.
func deleteRow[T any](tx *gorm.DB, id uint, notFound error) error {
	var model T
	result := tx.Delete(&model, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound
	}
	return nil
}

func findProduct(tx *gorm.DB, id uint) (*db.Product, error) {
	return first[db.Product](tx, id, ErrProductNotFound)
}

func findCustomer(tx *gorm.DB, id uint) (*db.Customer, error) {
	return first[db.Customer](tx, id, ErrCustomerNotFound)
}

func findSupplier(tx *gorm.DB, id uint) (*db.Supplier, error) {
	return first[db.Supplier](tx, id, ErrSupplierNotFound)
}

func findUser(tx *gorm.DB, id uint) (*db.User, error) {
	return first[db.User](tx, id, ErrUserNotFound)
}

// logFailure logs err only when it is an unexpected store failure;
// domain errors are the caller's to report.
func logFailure(log *zap.Logger, msg string, err error, fields ...zap.Field) {
	if apperr.KindOf(err) != apperr.KindStore {
		return
	}
	log.Error(msg, append(fields, zap.Error(err))...)
}
