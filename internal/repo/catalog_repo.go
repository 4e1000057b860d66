package repo

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/apperr"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	codePrefix      = "PROD-"
	codeSpace       = 10_000_000_000 // ten digits
	maxCodeAttempts = 5

	productSavepoint = "product_write"
)

// Product listing categories.
const (
	CategoryAll     = ""
	CategoryProduct = "product"
	CategoryOther   = "other"
)

// ProductInput describes a product to register. An empty Code is generated.
type ProductInput struct {
	Code        string
	Variant     string
	ProductType string
	Name        string
	Quantity    int64
	Price       decimal.Decimal
}

func (in *ProductInput) normalize() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Variant = strings.TrimSpace(in.Variant)
	in.ProductType = strings.ToUpper(strings.TrimSpace(in.ProductType))
	in.Name = strings.TrimSpace(in.Name)

	if err := requireFields(map[string]string{"name": in.Name, "variant": in.Variant, "product_type": in.ProductType}); err != nil {
		return err
	}
	if in.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if in.Price.IsNegative() {
		return ErrInvalidPrice
	}
	in.Price = in.Price.Round(2)
	return nil
}

// ProductUpdate carries the fields to change. Empty strings and nil
// pointers leave the stored value alone.
type ProductUpdate struct {
	Code        string
	Variant     string
	ProductType string
	Name        string
	Quantity    *int64
	Price       *decimal.Decimal
}

// CatalogRepository handles product registration, lookup and removal.
type CatalogRepository struct {
	db      *db.DB
	log     *zap.Logger
	newCode func() string
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(database *db.DB, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:      database,
		log:     logger,
		newCode: randomProductCode,
	}
}

// RegisterProduct creates a product with its initial price history entry.
// A code or variant collision fails with a conflict before any write.
func (r *CatalogRepository) RegisterProduct(ctx context.Context, in ProductInput) (*db.Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	product := &db.Product{
		Code:               in.Code,
		Variant:            in.Variant,
		ProductType:        in.ProductType,
		Name:               in.Name,
		Quantity:           in.Quantity,
		RegisteredQuantity: in.Quantity,
		Price:              in.Price,
		PriceAdjustment:    db.PriceAdjustmentNone,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createProduct(ctx, tx, product, r.newCode)
	})
	if err != nil {
		logFailure(r.log, "Failed to register product", err, zap.String("code", product.Code))
		return nil, err
	}

	r.log.Info("Product registered", zap.Uint("product_id", product.ID), zap.String("code", product.Code))
	return product, nil
}

// createProduct inserts product after reserving its code and variant,
// appends the opening price entry and enqueues the creation event.
func createProduct(ctx context.Context, tx *gorm.DB, product *db.Product, newCode func() string) error {
	if product.Code == "" {
		code, err := generateProductCode(tx, newCode)
		if err != nil {
			return err
		}
		product.Code = code
	} else if err := ensureUnique(tx, "code", product.Code, 0, ErrDuplicateCode); err != nil {
		return err
	}
	if err := ensureUnique(tx, "variant", product.Variant, 0, ErrDuplicateVariant); err != nil {
		return err
	}

	if err := tx.SavePoint(productSavepoint).Error; err != nil {
		return err
	}
	if err := tx.Create(product).Error; err != nil {
		if isUniqueViolation(err) {
			return duplicateFrom(tx, product.Variant, 0)
		}
		return err
	}
	if err := appendPriceHistory(tx, product.ID, product.Price); err != nil {
		return err
	}

	return enqueue(ctx, tx, events.EventTypeProductCreated, product.ID, events.ProductCreatedPayload{
		ProductID:   product.ID,
		Code:        product.Code,
		Variant:     product.Variant,
		ProductType: product.ProductType,
		Name:        product.Name,
		Quantity:    product.Quantity,
		Price:       product.Price,
	})
}

// GetProduct retrieves a product by id
func (r *CatalogRepository) GetProduct(ctx context.Context, id uint) (*db.Product, error) {
	product, err := findProduct(r.db.WithContext(ctx), id)
	if err != nil {
		logFailure(r.log, "Failed to get product", err, zap.Uint("product_id", id))
		return nil, err
	}
	return product, nil
}

// ListProducts returns products in one category, by type then code.
func (r *CatalogRepository) ListProducts(ctx context.Context, category string) ([]*db.Product, error) {
	query := r.db.WithContext(ctx).Model(&db.Product{})

	switch strings.ToLower(category) {
	case CategoryAll:
	case CategoryProduct:
		query = query.Where("product_type = ?", db.ProductTypeProduct)
	case CategoryOther:
		query = query.Where("product_type <> ?", db.ProductTypeProduct)
	default:
		return nil, apperr.InvalidInput("invalid_category", "unknown product category %q", category)
	}

	var products []*db.Product
	if err := query.Order("product_type DESC").Order("code ASC").Find(&products).Error; err != nil {
		r.log.Error("Failed to list products", zap.Error(err))
		return nil, err
	}
	return products, nil
}

// UpdateProduct changes catalog fields. A quantity is taken as a manual
// count and stored as is; a price change goes through the price history.
func (r *CatalogRepository) UpdateProduct(ctx context.Context, id uint, upd ProductUpdate) (*db.Product, []string, error) {
	if upd.Quantity != nil && *upd.Quantity < 0 {
		return nil, nil, ErrInvalidQuantity
	}
	if upd.Price != nil {
		if upd.Price.IsNegative() {
			return nil, nil, ErrInvalidPrice
		}
		rounded := upd.Price.Round(2)
		upd.Price = &rounded
	}

	var (
		product       *db.Product
		fieldsChanged []string
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if product, err = findProduct(tx, id); err != nil {
			return err
		}

		updates := make(map[string]interface{})
		set := func(column, current, next string) {
			if next != "" && next != current {
				updates[column] = next
				fieldsChanged = append(fieldsChanged, column)
			}
		}
		set("name", product.Name, strings.TrimSpace(upd.Name))
		set("product_type", product.ProductType, strings.ToUpper(strings.TrimSpace(upd.ProductType)))

		if code := strings.TrimSpace(upd.Code); code != "" && code != product.Code {
			if err := ensureUnique(tx, "code", code, id, ErrDuplicateCode); err != nil {
				return err
			}
			set("code", product.Code, code)
		}
		if variant := strings.TrimSpace(upd.Variant); variant != "" && variant != product.Variant {
			if err := ensureUnique(tx, "variant", variant, id, ErrDuplicateVariant); err != nil {
				return err
			}
			set("variant", product.Variant, variant)
		}

		var manualDelta int64
		if upd.Quantity != nil && *upd.Quantity != product.Quantity {
			manualDelta = *upd.Quantity - product.Quantity
			updates["quantity"] = *upd.Quantity
			fieldsChanged = append(fieldsChanged, "quantity")
		}

		if len(updates) > 0 {
			if err := tx.SavePoint(productSavepoint).Error; err != nil {
				return err
			}
			if err := tx.Model(&db.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				if isUniqueViolation(err) {
					variant, _ := updates["variant"].(string)
					return duplicateFrom(tx, variant, id)
				}
				return err
			}
		}

		if manualDelta != 0 {
			err := enqueue(ctx, tx, events.EventTypeStockAdjusted, id, events.StockAdjustedPayload{
				ProductID:   id,
				Delta:       manualDelta,
				NewQuantity: *upd.Quantity,
				Source:      events.SourceManual,
			})
			if err != nil {
				return err
			}
		}

		if upd.Price != nil {
			changed, err := recordPriceChange(ctx, tx, product, *upd.Price)
			if err != nil {
				return err
			}
			if changed {
				fieldsChanged = append(fieldsChanged, "price")
			}
		}

		if len(fieldsChanged) == 0 {
			return nil
		}
		if err := enqueue(ctx, tx, events.EventTypeProductUpdated, id, events.ProductUpdatedPayload{
			ProductID:     id,
			FieldsChanged: fieldsChanged,
		}); err != nil {
			return err
		}

		product, err = findProduct(tx, id)
		return err
	})
	if err != nil {
		logFailure(r.log, "Failed to update product", err, zap.Uint("product_id", id))
		return nil, nil, err
	}

	if len(fieldsChanged) == 0 {
		r.log.Info("No fields changed", zap.Uint("product_id", id))
	} else {
		r.log.Info("Product updated", zap.Uint("product_id", id), zap.Strings("fields_changed", fieldsChanged))
	}
	return product, fieldsChanged, nil
}

// DeleteProduct removes a product and its price history. Products still
// referenced by orders, purchase orders or fresh stock are kept.
func (r *CatalogRepository) DeleteProduct(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := findProduct(tx, id)
		if err != nil {
			return err
		}

		for _, model := range []interface{}{&db.Order{}, &db.PurchaseOrder{}, &db.FreshProduct{}} {
			var refs int64
			if err := tx.Model(model).Where("product_id = ?", id).Count(&refs).Error; err != nil {
				return err
			}
			if refs > 0 {
				return ErrProductInUse
			}
		}

		if err := tx.Where("product_id = ?", id).Delete(&db.PriceHistoryEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&db.Product{}, id).Error; err != nil {
			return err
		}

		return enqueue(ctx, tx, events.EventTypeProductDeleted, id, events.ProductDeletedPayload{
			ProductID: id,
			Code:      product.Code,
		})
	})
	if err != nil {
		logFailure(r.log, "Failed to delete product", err, zap.Uint("product_id", id))
		return err
	}

	r.log.Info("Product deleted", zap.Uint("product_id", id))
	return nil
}

// generateProductCode draws random codes until one is free, giving up
// after maxCodeAttempts.
func generateProductCode(tx *gorm.DB, next func() string) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := next()
		err := ensureUnique(tx, "code", code, 0, ErrDuplicateCode)
		if err == nil {
			return code, nil
		}
		if err != ErrDuplicateCode {
			return "", err
		}
	}
	return "", ErrCodeExhausted
}

func randomProductCode() string {
	return fmt.Sprintf("%s%010d", codePrefix, rand.Int63n(codeSpace))
}

// ensureUnique fails with conflict when another product (not exceptID)
// already holds value in column.
func ensureUnique(tx *gorm.DB, column, value string, exceptID uint, conflict error) error {
	var count int64
	query := tx.Model(&db.Product{}).Where(column+" = ?", value)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return conflict
	}
	return nil
}

// duplicateFrom tells which unique column a failed write collided on. The
// check passed before the write, so another transaction won the race; tx
// is rolled back to productSavepoint and the variant is looked up again.
func duplicateFrom(tx *gorm.DB, variant string, exceptID uint) error {
	if err := tx.RollbackTo(productSavepoint).Error; err != nil {
		return err
	}
	if variant != "" {
		if err := ensureUnique(tx, "variant", variant, exceptID, ErrDuplicateVariant); err != nil {
			return err
		}
	}
	return ErrDuplicateCode
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"username", "name", "variant", "product_type", "status"} {
		if value, ok := fields[name]; ok && value == "" {
			return apperr.InvalidInput("missing_field", "%s is required", name)
		}
	}
	return nil
}
