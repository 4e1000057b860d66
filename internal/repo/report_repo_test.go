package repo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backdate moves an order's last update to at.
func (f *fixture) backdate(t *testing.T, orderID uint, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Model(&db.Order{}).Where("id = ?", orderID).UpdateColumn("updated_at", at.UTC()).Error)
}

func TestInventoryReportIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 10, "1")
	f.order(t, p.ID, 2, "")

	first, err := f.reports.InventoryReport(ctx)
	require.NoError(t, err)
	second, err := f.reports.InventoryReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(8), f.quantity(t, p.ID))
}

func TestInventoryReportManualCountDiscrepancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 10, "1")
	f.order(t, p.ID, 2, "")

	counted := int64(5)
	_, _, err := f.catalog.UpdateProduct(ctx, p.ID, ProductUpdate{Quantity: &counted})
	require.NoError(t, err)

	rows, err := f.reports.InventoryReport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(8), rows[0].ExpectedQuantity)
	assert.Equal(t, int64(5), rows[0].CountedQuantity)
	assert.Equal(t, int64(-3), rows[0].Discrepancy)
	assert.Equal(t, int64(7), rows[0].InitialQuantity)
}

func TestInventoryReportOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, in := range []ProductInput{
		{Code: "B", Variant: "1", ProductType: "PRODUCT", Name: "b"},
		{Code: "A", Variant: "2", ProductType: "PRODUCT", Name: "a"},
		{Code: "C", Variant: "3", ProductType: "SERVICE", Name: "c"},
	} {
		_, err := f.catalog.RegisterProduct(ctx, in)
		require.NoError(t, err)
	}

	rows, err := f.reports.InventoryReport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{rows[0].Code, rows[1].Code, rows[2].Code})
}

func TestSalesReportSkipsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 100, "2.50")
	b := f.product(t, "B", 100, "10")

	f.order(t, a.ID, 4, "PAID")
	f.order(t, a.ID, 6, "")
	f.order(t, b.ID, 1, "SHIPPED")

	rows, err := f.reports.SalesReport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byID := map[uint]SalesRow{rows[0].ProductID: rows[0], rows[1].ProductID: rows[1]}
	assert.Equal(t, int64(4), byID[a.ID].UnitsSold)
	assert.True(t, decimal.NewFromInt(10).Equal(byID[a.ID].Revenue), byID[a.ID].Revenue.String())
	assert.Equal(t, int64(1), byID[b.ID].UnitsSold)

	total, err := f.reports.TotalSales(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(total), total.String())

	// Revenue follows the current price.
	_, _, err = f.catalog.ChangePrice(ctx, b.ID, decimal.NewFromInt(30))
	require.NoError(t, err)
	total, err = f.reports.TotalSales(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(total), total.String())

	// The inventory report counts pending orders too.
	inv, err := f.reports.InventoryReport(ctx)
	require.NoError(t, err)
	for _, row := range inv {
		if row.ProductID == a.ID {
			assert.Equal(t, int64(10), row.UnitsSold)
		}
	}
}

func TestSalesByProductAndRevenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cheap := f.product(t, "Z", 100, "1")
	pricey := f.product(t, "Y", 100, "50")
	f.product(t, "X", 100, "5")

	f.order(t, cheap.ID, 10, "PAID")
	f.order(t, pricey.ID, 1, "PAID")

	byProduct, err := f.reports.SalesByProduct(ctx)
	require.NoError(t, err)
	require.Len(t, byProduct, 2)
	assert.Equal(t, "Widget Y", byProduct[0].Name)
	assert.Equal(t, "Widget Z", byProduct[1].Name)

	revenue, err := f.reports.ProductRevenue(ctx)
	require.NoError(t, err)
	require.Len(t, revenue, 2)
	assert.Equal(t, "Widget Y", revenue[0].Name)
	assert.True(t, decimal.NewFromInt(50).Equal(revenue[0].TotalRevenue))
}

func TestSeasonality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 100, "1")

	march := f.order(t, p.ID, 3, "PAID")
	f.backdate(t, march.ID, time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	march2 := f.order(t, p.ID, 2, "PAID")
	f.backdate(t, march2.ID, time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC))
	dec := f.order(t, p.ID, 5, "PAID")
	f.backdate(t, dec.ID, time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC))
	other := f.order(t, p.ID, 7, "PAID")
	f.backdate(t, other.ID, time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	pending := f.order(t, p.ID, 9, "")
	f.backdate(t, pending.ID, time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC))

	series, err := f.reports.Seasonality(ctx, 2025, time.UTC)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Widget V1", series[0].Name)
	assert.Equal(t, int64(5), series[0].Data[time.March-1])
	assert.Equal(t, int64(5), series[0].Data[time.December-1])
	assert.Zero(t, series[0].Data[time.April-1])

	all, err := f.reports.Seasonality(ctx, 0, time.UTC)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(7), all[0].Data[time.June-1])
}

func TestSalesBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "V1", 100, "1")
	now := time.Date(2026, time.May, 15, 9, 0, 0, 0, time.UTC)

	at := func(qty int64, ts time.Time) {
		o := f.order(t, p.ID, qty, "PAID")
		f.backdate(t, o.ID, ts)
	}
	at(1, time.Date(2026, time.May, 2, 8, 0, 0, 0, time.UTC))
	at(2, time.Date(2026, time.May, 2, 18, 0, 0, 0, time.UTC))
	at(4, time.Date(2026, time.May, 14, 8, 0, 0, 0, time.UTC))
	at(8, time.Date(2026, time.January, 3, 8, 0, 0, 0, time.UTC))
	at(16, time.Date(2023, time.July, 3, 8, 0, 0, 0, time.UTC))
	at(32, time.Date(2020, time.July, 3, 8, 0, 0, 0, time.UTC))

	daily, err := f.reports.DailySales(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []SalesPoint{
		{Period: "2026-05-02", TotalQuantity: 3},
		{Period: "2026-05-14", TotalQuantity: 4},
	}, daily)

	monthly, err := f.reports.MonthlySales(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []SalesPoint{
		{Period: "2026-01", TotalQuantity: 8},
		{Period: "2026-05", TotalQuantity: 7},
	}, monthly)

	yearly, err := f.reports.YearlySales(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []SalesPoint{
		{Period: "2023", TotalQuantity: 16},
		{Period: "2026", TotalQuantity: 15},
	}, yearly)
}
