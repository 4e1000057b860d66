package repo

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Movement is one quantity change applied to a product.
type Movement struct {
	ProductID   uint   `json:"product_id"`
	Delta       int64  `json:"delta"`
	NewQuantity int64  `json:"new_quantity"`
	Source      string `json:"source"`
}

type OrderInput struct {
	CustomerID uint
	ProductID  uint
	UserID     uint
	Quantity   int64
	Status     string
}

func (in *OrderInput) normalize() error {
	if in.Quantity < 1 {
		return ErrInvalidOrderQty
	}
	in.Status = strings.ToUpper(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = db.OrderStatusPending
	}
	return nil
}

type RestockInput struct {
	SupplierID uint
	ProductID  uint
	UserID     uint
	Quantity   int64
	Payment    decimal.Decimal
}

type NewProductInput struct {
	SupplierID  uint
	UserID      uint
	ProductType string
	Name        string
	Variant     string
	Quantity    int64
	Price       decimal.Decimal
	Payment     decimal.Decimal
}

type FreshStockInput struct {
	ProductID uint
	UserID    uint
	Quantity  int64
}

// LedgerRepository applies every quantity mutation: orders, purchase
// orders and fresh stock. Each operation runs in one transaction and
// moves quantity with a relative update.
type LedgerRepository struct {
	db      *db.DB
	log     *zap.Logger
	newCode func() string
}

func NewLedgerRepository(database *db.DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:      database,
		log:     logger,
		newCode: randomProductCode,
	}
}

// applyDelta adds delta to the stored quantity in a single statement.
// Decrements are refused when they would leave the quantity negative.
func applyDelta(tx *gorm.DB, productID uint, delta int64) (int64, error) {
	query := tx.Model(&db.Product{}).Where("id = ?", productID)
	if delta < 0 {
		query = query.Where("quantity >= ?", -delta)
	}

	result := query.Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := findProduct(tx, productID); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientStock
	}

	var quantity int64
	if err := tx.Model(&db.Product{}).Select("quantity").Where("id = ?", productID).Row().Scan(&quantity); err != nil {
		return 0, err
	}
	return quantity, nil
}

// moveStock applies delta and enqueues the matching stock event.
func moveStock(ctx context.Context, tx *gorm.DB, productID uint, delta int64, source string, referenceID uint) (Movement, error) {
	quantity, err := applyDelta(tx, productID, delta)
	if err != nil {
		return Movement{}, err
	}

	m := Movement{ProductID: productID, Delta: delta, NewQuantity: quantity, Source: source}
	return m, enqueue(ctx, tx, events.EventTypeStockAdjusted, productID, events.StockAdjustedPayload{
		ProductID:   productID,
		Delta:       delta,
		NewQuantity: quantity,
		Source:      source,
		ReferenceID: referenceID,
	})
}

// RegisterOrder records a customer order priced at the current product
// price and decrements stock regardless of status.
func (r *LedgerRepository) RegisterOrder(ctx context.Context, in OrderInput) (*db.Order, []Movement, error) {
	if err := in.normalize(); err != nil {
		return nil, nil, err
	}

	var (
		order     *db.Order
		movements []Movement
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCustomer(tx, in.CustomerID); err != nil {
			return err
		}
		if _, err := findUser(tx, in.UserID); err != nil {
			return err
		}
		product, err := findProduct(tx, in.ProductID)
		if err != nil {
			return err
		}

		order = &db.Order{
			CustomerID: in.CustomerID,
			ProductID:  in.ProductID,
			UserID:     in.UserID,
			Quantity:   in.Quantity,
			Status:     in.Status,
			Total:      product.Price.Mul(decimal.NewFromInt(in.Quantity)),
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		m, err := moveStock(ctx, tx, in.ProductID, -in.Quantity, events.SourceOrder, order.ID)
		if err != nil {
			return err
		}
		movements = append(movements, m)

		return enqueue(ctx, tx, events.EventTypeOrderRegistered, order.ID, events.OrderRegisteredPayload{
			OrderID:    order.ID,
			ProductID:  order.ProductID,
			CustomerID: order.CustomerID,
			Quantity:   order.Quantity,
			Status:     order.Status,
			Total:      order.Total,
		})
	})
	if err != nil {
		logFailure(r.log, "Failed to register order", err, zap.Uint("product_id", in.ProductID))
		return nil, nil, err
	}

	r.log.Info("Order registered",
		zap.Uint("order_id", order.ID),
		zap.Uint("product_id", order.ProductID),
		zap.Int64("quantity", order.Quantity),
	)
	return order, movements, nil
}

// UpdateOrder rewrites an order, moves stock by the difference and
// recomputes the total at the product's current price.
func (r *LedgerRepository) UpdateOrder(ctx context.Context, id uint, in OrderInput) (*db.Order, []Movement, error) {
	if err := in.normalize(); err != nil {
		return nil, nil, err
	}

	var (
		order     *db.Order
		movements []Movement
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockFirst[db.Order](tx, id, ErrOrderNotFound); err != nil {
			return err
		}
		if _, err := findCustomer(tx, in.CustomerID); err != nil {
			return err
		}
		if _, err := findUser(tx, in.UserID); err != nil {
			return err
		}
		product, err := findProduct(tx, in.ProductID)
		if err != nil {
			return err
		}

		if order.ProductID == in.ProductID {
			if net := order.Quantity - in.Quantity; net != 0 {
				m, err := moveStock(ctx, tx, in.ProductID, net, events.SourceOrderUpdate, order.ID)
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}
		} else {
			back, err := moveStock(ctx, tx, order.ProductID, order.Quantity, events.SourceOrderUpdate, order.ID)
			if err != nil {
				return err
			}
			out, err := moveStock(ctx, tx, in.ProductID, -in.Quantity, events.SourceOrderUpdate, order.ID)
			if err != nil {
				return err
			}
			movements = append(movements, back, out)
		}

		err = tx.Model(&db.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
			"customer_id": in.CustomerID,
			"product_id":  in.ProductID,
			"user_id":     in.UserID,
			"quantity":    in.Quantity,
			"status":      in.Status,
			"total":       product.Price.Mul(decimal.NewFromInt(in.Quantity)),
		}).Error
		if err != nil {
			return err
		}

		order, err = first[db.Order](tx, id, ErrOrderNotFound)
		return err
	})
	if err != nil {
		logFailure(r.log, "Failed to update order", err, zap.Uint("order_id", id))
		return nil, nil, err
	}

	r.log.Info("Order updated", zap.Uint("order_id", id), zap.Int("movements", len(movements)))
	return order, movements, nil
}

// DeleteOrder removes an order and returns its quantity to stock.
func (r *LedgerRepository) DeleteOrder(ctx context.Context, id uint) ([]Movement, error) {
	var movements []Movement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockFirst[db.Order](tx, id, ErrOrderNotFound)
		if err != nil {
			return err
		}
		if err := deleteRow[db.Order](tx, id, ErrOrderNotFound); err != nil {
			return err
		}
		m, err := moveStock(ctx, tx, order.ProductID, order.Quantity, events.SourceOrderDelete, id)
		if err != nil {
			return err
		}
		movements = append(movements, m)
		return nil
	})
	if err != nil {
		logFailure(r.log, "Failed to delete order", err, zap.Uint("order_id", id))
		return nil, err
	}

	r.log.Info("Order deleted", zap.Uint("order_id", id))
	return movements, nil
}

func (r *LedgerRepository) GetOrder(ctx context.Context, id uint) (*db.Order, error) {
	return first[db.Order](r.db.WithContext(ctx), id, ErrOrderNotFound)
}

// ListOrders returns orders, most recently updated first.
func (r *LedgerRepository) ListOrders(ctx context.Context) ([]*db.Order, error) {
	var orders []*db.Order
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		r.log.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

// RestockPurchase records a supplier restock of an existing product.
func (r *LedgerRepository) RestockPurchase(ctx context.Context, in RestockInput) (*db.PurchaseOrder, []Movement, error) {
	if in.Quantity < 0 {
		return nil, nil, ErrInvalidQuantity
	}
	if in.Payment.IsNegative() {
		return nil, nil, ErrInvalidPayment
	}

	var (
		purchase  *db.PurchaseOrder
		movements []Movement
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		supplier, err := findSupplier(tx, in.SupplierID)
		if err != nil {
			return err
		}
		product, err := findProduct(tx, in.ProductID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, in.UserID)
		if err != nil {
			return err
		}

		purchase = &db.PurchaseOrder{
			SupplierID:     supplier.ID,
			ProductID:      product.ID,
			UserID:         user.ID,
			Quantity:       in.Quantity,
			Payment:        in.Payment.Round(2),
			Kind:           db.PurchaseKindRestock,
			SupplierName:   supplier.Name,
			ProductName:    product.Name,
			ProductVariant: product.Variant,
			UserName:       user.Name,
		}
		if err := tx.Create(purchase).Error; err != nil {
			return err
		}

		m, err := moveStock(ctx, tx, product.ID, in.Quantity, events.SourceRestock, purchase.ID)
		if err != nil {
			return err
		}
		movements = append(movements, m)
		return nil
	})
	if err != nil {
		logFailure(r.log, "Failed to register restock", err, zap.Uint("product_id", in.ProductID))
		return nil, nil, err
	}

	r.log.Info("Restock registered",
		zap.Uint("purchase_order_id", purchase.ID),
		zap.Uint("product_id", purchase.ProductID),
		zap.Int64("quantity", purchase.Quantity),
	)
	return purchase, movements, nil
}

// RegisterNewProductPurchase creates a product from a supplier delivery.
// The delivered quantity enters through the ledger, so the product's
// registered quantity is zero.
func (r *LedgerRepository) RegisterNewProductPurchase(ctx context.Context, in NewProductInput) (*db.PurchaseOrder, *db.Product, []Movement, error) {
	if in.Quantity < 0 {
		return nil, nil, nil, ErrInvalidQuantity
	}
	if in.Price.IsNegative() {
		return nil, nil, nil, ErrInvalidPrice
	}
	if in.Payment.IsNegative() {
		return nil, nil, nil, ErrInvalidPayment
	}
	draft := ProductInput{ProductType: in.ProductType, Name: in.Name, Variant: in.Variant, Price: in.Price}
	if err := draft.normalize(); err != nil {
		return nil, nil, nil, err
	}

	var (
		purchase  *db.PurchaseOrder
		product   *db.Product
		movements []Movement
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		supplier, err := findSupplier(tx, in.SupplierID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, in.UserID)
		if err != nil {
			return err
		}

		product = &db.Product{
			Variant:         draft.Variant,
			ProductType:     draft.ProductType,
			Name:            draft.Name,
			Price:           draft.Price,
			PriceAdjustment: db.PriceAdjustmentNone,
		}
		if err := createProduct(ctx, tx, product, r.newCode); err != nil {
			return err
		}

		purchase = &db.PurchaseOrder{
			SupplierID:     supplier.ID,
			ProductID:      product.ID,
			UserID:         user.ID,
			Quantity:       in.Quantity,
			Payment:        in.Payment.Round(2),
			Kind:           db.PurchaseKindNewProduct,
			SupplierName:   supplier.Name,
			ProductName:    product.Name,
			ProductVariant: product.Variant,
			UserName:       user.Name,
		}
		if err := tx.Create(purchase).Error; err != nil {
			return err
		}

		m, err := moveStock(ctx, tx, product.ID, in.Quantity, events.SourceNewProduct, purchase.ID)
		if err != nil {
			return err
		}
		movements = append(movements, m)
		product.Quantity = m.NewQuantity
		return nil
	})
	if err != nil {
		logFailure(r.log, "Failed to register new product purchase", err, zap.String("variant", in.Variant))
		return nil, nil, nil, err
	}

	r.log.Info("New product purchase registered",
		zap.Uint("purchase_order_id", purchase.ID),
		zap.Uint("product_id", product.ID),
		zap.String("code", product.Code),
	)
	return purchase, product, movements, nil
}

// DeletePurchaseOrder removes a purchase order and takes its quantity back
// out of stock.
func (r *LedgerRepository) DeletePurchaseOrder(ctx context.Context, id uint) ([]Movement, error) {
	var movements []Movement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := lockFirst[db.PurchaseOrder](tx, id, ErrPurchaseOrderNotFound)
		if err != nil {
			return err
		}
		if err := deleteRow[db.PurchaseOrder](tx, id, ErrPurchaseOrderNotFound); err != nil {
			return err
		}
		m, err := moveStock(ctx, tx, purchase.ProductID, -purchase.Quantity, events.SourcePurchaseDelete, id)
		if err != nil {
			return err
		}
		movements = append(movements, m)
		return nil
	})
	if err != nil {
		logFailure(r.log, "Failed to delete purchase order", err, zap.Uint("purchase_order_id", id))
		return nil, err
	}

	r.log.Info("Purchase order deleted", zap.Uint("purchase_order_id", id))
	return movements, nil
}

func (r *LedgerRepository) GetPurchaseOrder(ctx context.Context, id uint) (*db.PurchaseOrder, error) {
	return first[db.PurchaseOrder](r.db.WithContext(ctx), id, ErrPurchaseOrderNotFound)
}

func (r *LedgerRepository) ListPurchaseOrders(ctx context.Context) ([]*db.PurchaseOrder, error) {
	var purchases []*db.PurchaseOrder
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&purchases).Error; err != nil {
		r.log.Error("Failed to list purchase orders", zap.Error(err))
		return nil, err
	}
	return purchases, nil
}

// AddFreshStock records an ad hoc restock.
func (r *LedgerRepository) AddFreshStock(ctx context.Context, in FreshStockInput) (*db.FreshProduct, []Movement, error) {
	if in.Quantity < 0 {
		return nil, nil, ErrInvalidQuantity
	}

	var (
		entry     *db.FreshProduct
		movements []Movement
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := findProduct(tx, in.ProductID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, in.UserID)
		if err != nil {
			return err
		}

		entry = &db.FreshProduct{
			ProductID:      product.ID,
			UserID:         user.ID,
			Quantity:       in.Quantity,
			ProductCode:    product.Code,
			ProductVariant: product.Variant,
			UserName:       user.Name,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		m, err := moveStock(ctx, tx, product.ID, in.Quantity, events.SourceFreshStock, entry.ID)
		if err != nil {
			return err
		}
		movements = append(movements, m)
		return nil
	})
	if err != nil {
		logFailure(r.log, "Failed to add fresh stock", err, zap.Uint("product_id", in.ProductID))
		return nil, nil, err
	}

	r.log.Info("Fresh stock added",
		zap.Uint("fresh_product_id", entry.ID),
		zap.Uint("product_id", entry.ProductID),
		zap.Int64("quantity", entry.Quantity),
	)
	return entry, movements, nil
}

// UpdateFreshStock rewrites a fresh-stock entry. The old quantity leaves
// the old product (guarded) before the new quantity is credited.
func (r *LedgerRepository) UpdateFreshStock(ctx context.Context, id uint, in FreshStockInput) (*db.FreshProduct, []Movement, error) {
	if in.Quantity < 0 {
		return nil, nil, ErrInvalidQuantity
	}

	var (
		entry     *db.FreshProduct
		movements []Movement
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if entry, err = lockFirst[db.FreshProduct](tx, id, ErrFreshStockNotFound); err != nil {
			return err
		}
		product, err := findProduct(tx, in.ProductID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, in.UserID)
		if err != nil {
			return err
		}

		if entry.ProductID == in.ProductID {
			if net := in.Quantity - entry.Quantity; net != 0 {
				m, err := moveStock(ctx, tx, in.ProductID, net, events.SourceFreshUpdate, id)
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}
		} else {
			back, err := moveStock(ctx, tx, entry.ProductID, -entry.Quantity, events.SourceFreshUpdate, id)
			if err != nil {
				return err
			}
			out, err := moveStock(ctx, tx, product.ID, in.Quantity, events.SourceFreshUpdate, id)
			if err != nil {
				return err
			}
			movements = append(movements, back, out)
		}

		err = tx.Model(&db.FreshProduct{}).Where("id = ?", id).Updates(map[string]interface{}{
			"product_id":      product.ID,
			"user_id":         user.ID,
			"quantity":        in.Quantity,
			"product_code":    product.Code,
			"product_variant": product.Variant,
			"user_name":       user.Name,
		}).Error
		if err != nil {
			return err
		}

		entry, err = first[db.FreshProduct](tx, id, ErrFreshStockNotFound)
		return err
	})
	if err != nil {
		logFailure(r.log, "Failed to update fresh stock", err, zap.Uint("fresh_product_id", id))
		return nil, nil, err
	}

	r.log.Info("Fresh stock updated", zap.Uint("fresh_product_id", id), zap.Int("movements", len(movements)))
	return entry, movements, nil
}

// DeleteFreshStock removes a fresh-stock entry and its quantity.
func (r *LedgerRepository) DeleteFreshStock(ctx context.Context, id uint) ([]Movement, error) {
	var movements []Movement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := lockFirst[db.FreshProduct](tx, id, ErrFreshStockNotFound)
		if err != nil {
			return err
		}
		if err := deleteRow[db.FreshProduct](tx, id, ErrFreshStockNotFound); err != nil {
			return err
		}
		m, err := moveStock(ctx, tx, entry.ProductID, -entry.Quantity, events.SourceFreshDelete, id)
		if err != nil {
			return err
		}
		movements = append(movements, m)
		return nil
	})
	if err != nil {
		logFailure(r.log, "Failed to delete fresh stock", err, zap.Uint("fresh_product_id", id))
		return nil, err
	}

	r.log.Info("Fresh stock deleted", zap.Uint("fresh_product_id", id))
	return movements, nil
}

func (r *LedgerRepository) GetFreshStock(ctx context.Context, id uint) (*db.FreshProduct, error) {
	return first[db.FreshProduct](r.db.WithContext(ctx), id, ErrFreshStockNotFound)
}

func (r *LedgerRepository) ListFreshStock(ctx context.Context) ([]*db.FreshProduct, error) {
	var entries []*db.FreshProduct
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		r.log.Error("Failed to list fresh stock", zap.Error(err))
		return nil, err
	}
	return entries, nil
}
