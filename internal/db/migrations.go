package db

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations creates or updates every table the service owns.
func RunMigrations(db *DB) error {
	// Referenced tables first so foreign keys resolve.
	if err := db.AutoMigrate(
		&Customer{},
		&Supplier{},
		&User{},
		&Product{},
		&PriceHistoryEntry{},
		&Order{},
		&PurchaseOrder{},
		&FreshProduct{},
		&OutboxEvent{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return createIndexes(db.DB)
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Report ordering
		`CREATE INDEX IF NOT EXISTS idx_products_type_code ON products(product_type DESC, code)`,

		// Sales aggregates skip pending orders
		`CREATE INDEX IF NOT EXISTS idx_orders_product_status ON orders(product_id, status)`,

		// Relay polling
		`CREATE INDEX IF NOT EXISTS idx_outbox_events_status_id ON outbox_events(status, id)`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
