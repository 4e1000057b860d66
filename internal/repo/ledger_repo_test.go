package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/apperr"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLedgerScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P", 100, "10.00")

	order, movements, err := f.ledger.RegisterOrder(ctx, OrderInput{
		CustomerID: f.customer.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 30, Status: "shipped",
	})
	require.NoError(t, err)
	assert.Equal(t, "SHIPPED", order.Status)
	assert.True(t, decimal.RequireFromString("300").Equal(order.Total), order.Total.String())
	require.Len(t, movements, 1)
	assert.Equal(t, Movement{ProductID: p.ID, Delta: -30, NewQuantity: 70, Source: events.SourceOrder}, movements[0])
	assert.Equal(t, int64(70), f.quantity(t, p.ID))

	_, movements, err = f.ledger.RestockPurchase(ctx, RestockInput{
		SupplierID: f.supplier.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 20, Payment: decimal.NewFromInt(150),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(90), movements[0].NewQuantity)

	_, movements, err = f.ledger.AddFreshStock(ctx, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(95), movements[0].NewQuantity)
	assert.Equal(t, int64(95), f.quantity(t, p.ID))

	rows, err := f.reports.InventoryReport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, int64(25), row.AddedStock)
	assert.Equal(t, int64(30), row.UnitsSold)
	assert.Equal(t, int64(95), row.CountedQuantity)
	assert.Equal(t, int64(100), row.InitialQuantity)
	assert.Equal(t, int64(95), row.ExpectedQuantity)
	assert.Zero(t, row.Discrepancy)

	// One stock event per movement.
	assert.Equal(t, int64(3), f.countEvents(t, events.EventTypeStockAdjusted))
	assert.Equal(t, int64(1), f.countEvents(t, events.EventTypeOrderRegistered))
}

func TestRegisterOrderDefaultsToPending(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "V1", 5, "1")

	order := f.order(t, p.ID, 2, "  ")
	assert.Equal(t, db.OrderStatusPending, order.Status)
	assert.Equal(t, int64(3), f.quantity(t, p.ID))
}

func TestRegisterOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 3, "1")

	_, _, err := f.ledger.RegisterOrder(ctx, OrderInput{
		CustomerID: f.customer.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 4,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	assert.Equal(t, int64(3), f.quantity(t, p.ID))
	orders, err := f.ledger.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, f.countEvents(t, events.EventTypeStockAdjusted))
}

func TestRegisterOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 3, "1")

	tests := []struct {
		name string
		in   OrderInput
		want error
	}{
		{"zero quantity", OrderInput{CustomerID: f.customer.ID, ProductID: p.ID, UserID: f.user.ID}, ErrInvalidOrderQty},
		{"unknown product", OrderInput{CustomerID: f.customer.ID, ProductID: 99, UserID: f.user.ID, Quantity: 1}, ErrProductNotFound},
		{"unknown customer", OrderInput{CustomerID: 99, ProductID: p.ID, UserID: f.user.ID, Quantity: 1}, ErrCustomerNotFound},
		{"unknown user", OrderInput{CustomerID: f.customer.ID, ProductID: p.ID, UserID: 99, Quantity: 1}, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.ledger.RegisterOrder(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, int64(3), f.quantity(t, p.ID))
}

// SQLite runs on one connection here, so the goroutines below are
// serialized. TestRegisterOrderSeesConcurrentDecrement covers an
// interleaved write inside a single transaction.
func TestConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 10, "1")

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.ledger.RegisterOrder(ctx, OrderInput{
				CustomerID: f.customer.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 1,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Zero(t, f.quantity(t, p.ID))
}

func TestUpdateOrderSameProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 10, "2.50")
	order := f.order(t, p.ID, 4, "")

	updated, movements, err := f.ledger.UpdateOrder(ctx, order.ID, OrderInput{
		CustomerID: f.customer.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 1, Status: "delivered",
	})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, int64(3), movements[0].Delta)
	assert.Equal(t, int64(9), f.quantity(t, p.ID))
	assert.Equal(t, "DELIVERED", updated.Status)
	assert.True(t, decimal.RequireFromString("2.5").Equal(updated.Total), updated.Total.String())

	_, _, err = f.ledger.UpdateOrder(ctx, order.ID, OrderInput{
		CustomerID: f.customer.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 11,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(9), f.quantity(t, p.ID))
}

func TestUpdateOrderSwitchesProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, "1")
	b := f.product(t, "B", 10, "3")
	order := f.order(t, a.ID, 4, "")

	updated, movements, err := f.ledger.UpdateOrder(ctx, order.ID, OrderInput{
		CustomerID: f.customer.ID, ProductID: b.ID, UserID: f.user.ID, Quantity: 2,
	})
	require.NoError(t, err)
	assert.Len(t, movements, 2)
	assert.Equal(t, int64(10), f.quantity(t, a.ID))
	assert.Equal(t, int64(8), f.quantity(t, b.ID))
	assert.Equal(t, b.ID, updated.ProductID)
	assert.True(t, decimal.NewFromInt(6).Equal(updated.Total))
}

func TestDeleteOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 10, "1")
	order := f.order(t, p.ID, 6, "")

	movements, err := f.ledger.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, events.SourceOrderDelete, movements[0].Source)
	assert.Equal(t, int64(10), f.quantity(t, p.ID))

	_, err = f.ledger.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.ledger.DeleteOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRegisterNewProductPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	po, product, movements, err := f.ledger.RegisterNewProductPurchase(ctx, NewProductInput{
		SupplierID:  f.supplier.ID,
		UserID:      f.user.ID,
		ProductType: "product",
		Name:        "Sprocket",
		Variant:     "SPR-1",
		Quantity:    12,
		Price:       decimal.RequireFromString("4.20"),
		Payment:     decimal.RequireFromString("30"),
	})
	require.NoError(t, err)

	assert.Equal(t, db.PurchaseKindNewProduct, po.Kind)
	assert.Equal(t, "Globex", po.SupplierName)
	assert.Equal(t, "Sprocket", po.ProductName)
	assert.Equal(t, int64(12), product.Quantity)
	assert.Zero(t, product.RegisteredQuantity)
	assert.NotEmpty(t, product.Code)
	require.Len(t, movements, 1)
	assert.Equal(t, events.SourceNewProduct, movements[0].Source)

	history, err := f.catalog.ListPriceHistory(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	rows, err := f.reports.InventoryReport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(12), rows[0].AddedStock)
	assert.Zero(t, rows[0].InitialQuantity)
	assert.Zero(t, rows[0].Discrepancy)
}

func TestRegisterNewProductPurchaseDuplicateVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "SPR-1", 1, "1")

	_, _, _, err := f.ledger.RegisterNewProductPurchase(ctx, NewProductInput{
		SupplierID: f.supplier.ID, UserID: f.user.ID, ProductType: "PRODUCT", Name: "Sprocket", Variant: "SPR-1", Quantity: 3,
	})
	assert.ErrorIs(t, err, ErrDuplicateVariant)

	purchases, err := f.ledger.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestRestockValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 1, "1")

	_, _, err := f.ledger.RestockPurchase(ctx, RestockInput{SupplierID: f.supplier.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = f.ledger.RestockPurchase(ctx, RestockInput{SupplierID: f.supplier.ID, ProductID: p.ID, UserID: f.user.ID, Payment: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, ErrInvalidPayment)

	_, _, err = f.ledger.RestockPurchase(ctx, RestockInput{SupplierID: 42, ProductID: p.ID, UserID: f.user.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrSupplierNotFound)
}

func TestDeletePurchaseOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 2, "1")

	po, _, err := f.ledger.RestockPurchase(ctx, RestockInput{SupplierID: f.supplier.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 8})
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.quantity(t, p.ID))

	// Selling the restocked units makes the purchase impossible to undo.
	order := f.order(t, p.ID, 5, "")
	_, err = f.ledger.DeletePurchaseOrder(ctx, po.ID)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	_, err = f.ledger.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)

	_, err = f.ledger.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	movements, err := f.ledger.DeletePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-8), movements[0].Delta)
	assert.Equal(t, int64(2), f.quantity(t, p.ID))
}

func TestFreshStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 0, "1")

	entry, _, err := f.ledger.AddFreshStock(ctx, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, p.Code, entry.ProductCode)
	assert.Equal(t, "Store Clerk", entry.UserName)

	entries, err := f.ledger.ListFreshStock(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = f.ledger.DeleteFreshStock(ctx, entry.ID)
	require.NoError(t, err)
	assert.Zero(t, f.quantity(t, p.ID))

	_, err = f.ledger.GetFreshStock(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrFreshStockNotFound)

	_, _, err = f.ledger.AddFreshStock(ctx, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 50, "1")

	f.order(t, p.ID, 7, "")
	f.order(t, p.ID, 3, "PAID")
	_, _, err := f.ledger.RestockPurchase(ctx, RestockInput{SupplierID: f.supplier.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 11})
	require.NoError(t, err)
	_, _, err = f.ledger.AddFreshStock(ctx, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: 2})
	require.NoError(t, err)

	// registered + added - sold
	assert.Equal(t, int64(50+11+2-7-3), f.quantity(t, p.ID))
}

func TestRegisterOrderSeesConcurrentDecrement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 10, "1")

	// Another writer takes 8 units after the order read the product.
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:concurrent_decrement",
		onceOn(onTable("products"), func(tx *gorm.DB) {
			tx.Exec("UPDATE products SET quantity = quantity - 8 WHERE id = ?", p.ID)
		})))

	_, _, err := f.ledger.RegisterOrder(ctx, OrderInput{
		CustomerID: f.customer.ID, ProductID: p.ID, UserID: f.user.ID, Quantity: 5,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestDeleteOrderAlreadyDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 10, "1")
	order := f.order(t, p.ID, 4, "")

	// A concurrent delete of the same order commits between the read and
	// the DELETE, crediting the stock itself.
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register("test:concurrent_delete",
		onceOn(onTable("orders"), func(tx *gorm.DB) {
			tx.Exec("DELETE FROM orders WHERE id = ?", order.ID)
			tx.Exec("UPDATE products SET quantity = quantity + 4 WHERE id = ?", p.ID)
		})))

	_, err := f.ledger.DeleteOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	// Nothing was credited a second time; the transaction rolled back.
	assert.Equal(t, int64(6), f.quantity(t, p.ID))
}

func TestDeleteFreshStockAlreadyDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 0, "1")
	entry, _, err := f.ledger.AddFreshStock(ctx, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: 5})
	require.NoError(t, err)

	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register("test:concurrent_delete",
		onceOn(onTable("fresh_products"), func(tx *gorm.DB) {
			tx.Exec("DELETE FROM fresh_products WHERE id = ?", entry.ID)
		})))

	_, err = f.ledger.DeleteFreshStock(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrFreshStockNotFound)
	assert.Equal(t, int64(5), f.quantity(t, p.ID))
}

func TestUpdateFreshStockSameProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 0, "1")
	entry, _, err := f.ledger.AddFreshStock(ctx, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: 4})
	require.NoError(t, err)

	updated, movements, err := f.ledger.UpdateFreshStock(ctx, entry.ID, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: 7})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, Movement{ProductID: p.ID, Delta: 3, NewQuantity: 7, Source: events.SourceFreshUpdate}, movements[0])
	assert.Equal(t, int64(7), updated.Quantity)

	// Lowering below what is left after a sale is refused.
	f.order(t, p.ID, 6, "")
	_, _, err = f.ledger.UpdateFreshStock(ctx, entry.ID, FreshStockInput{ProductID: p.ID, UserID: f.user.ID, Quantity: 2})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(1), f.quantity(t, p.ID))

	unchanged, err := f.ledger.GetFreshStock(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), unchanged.Quantity)
}

func TestUpdateFreshStockSwitchesProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 0, "1")
	b := f.product(t, "B", 2, "1")
	other, err := f.directory.RegisterUser(ctx, ContactInput{Username: "night", Name: "Night Shift"})
	require.NoError(t, err)

	entry, _, err := f.ledger.AddFreshStock(ctx, FreshStockInput{ProductID: a.ID, UserID: f.user.ID, Quantity: 5})
	require.NoError(t, err)

	updated, movements, err := f.ledger.UpdateFreshStock(ctx, entry.ID, FreshStockInput{ProductID: b.ID, UserID: other.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Len(t, movements, 2)
	assert.Zero(t, f.quantity(t, a.ID))
	assert.Equal(t, int64(5), f.quantity(t, b.ID))
	assert.Equal(t, b.ID, updated.ProductID)
	assert.Equal(t, b.Code, updated.ProductCode)
	assert.Equal(t, "B", updated.ProductVariant)
	assert.Equal(t, "Night Shift", updated.UserName)

	_, _, err = f.ledger.UpdateFreshStock(ctx, 999, FreshStockInput{ProductID: b.ID, UserID: other.ID})
	assert.ErrorIs(t, err, ErrFreshStockNotFound)
	_, _, err = f.ledger.UpdateFreshStock(ctx, entry.ID, FreshStockInput{ProductID: b.ID, UserID: other.ID, Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}
