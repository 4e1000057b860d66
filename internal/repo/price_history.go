package repo

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// appendPriceHistory adds an immutable entry for price.
func appendPriceHistory(tx *gorm.DB, productID uint, price decimal.Decimal) error {
	return tx.Create(&db.PriceHistoryEntry{ProductID: productID, Price: price}).Error
}

// recordPriceChange sets a new price on product, appends a history entry
// and raises the price-adjustment flag. An unchanged price is a no-op.
// The flag is never cleared here.
func recordPriceChange(ctx context.Context, tx *gorm.DB, product *db.Product, newPrice decimal.Decimal) (bool, error) {
	if product.Price.Equal(newPrice) {
		return false, nil
	}

	err := tx.Model(&db.Product{}).Where("id = ?", product.ID).Updates(map[string]interface{}{
		"price":            newPrice,
		"price_adjustment": db.PriceAdjustmentNew,
	}).Error
	if err != nil {
		return false, err
	}

	if err := appendPriceHistory(tx, product.ID, newPrice); err != nil {
		return false, err
	}

	previous := product.Price
	product.Price = newPrice
	product.PriceAdjustment = db.PriceAdjustmentNew

	return true, enqueue(ctx, tx, events.EventTypePriceChanged, product.ID, events.PriceChangedPayload{
		ProductID:     product.ID,
		PreviousPrice: previous,
		NewPrice:      newPrice,
	})
}

// ChangePrice applies a price change to one product.
func (r *CatalogRepository) ChangePrice(ctx context.Context, productID uint, price decimal.Decimal) (*db.Product, bool, error) {
	if price.IsNegative() {
		return nil, false, ErrInvalidPrice
	}
	price = price.Round(2)

	var (
		product *db.Product
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if product, err = findProduct(tx, productID); err != nil {
			return err
		}
		changed, err = recordPriceChange(ctx, tx, product, price)
		return err
	})
	if err != nil {
		logFailure(r.log, "Failed to change price", err, zap.Uint("product_id", productID))
		return nil, false, err
	}

	if changed {
		r.log.Info("Price changed", zap.Uint("product_id", productID), zap.String("price", price.String()))
	}
	return product, changed, nil
}

// ListPriceHistory returns a product's price entries, oldest first.
func (r *CatalogRepository) ListPriceHistory(ctx context.Context, productID uint) ([]*db.PriceHistoryEntry, error) {
	if _, err := findProduct(r.db.WithContext(ctx), productID); err != nil {
		return nil, err
	}

	var entries []*db.PriceHistoryEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		r.log.Error("Failed to list price history", zap.Uint("product_id", productID), zap.Error(err))
		return nil, err
	}
	return entries, nil
}
