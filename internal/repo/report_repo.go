package repo

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/db"
	"go.uber.org/zap"
)

// InventoryRow reconciles one product's stored quantity with the quantity
// its order, purchase and fresh-stock history implies.
type InventoryRow struct {
	ProductID        uint   `json:"product_id"`
	Code             string `json:"code"`
	Variant          string `json:"variant"`
	ProductType      string `json:"product_type"`
	Name             string `json:"name"`
	InitialQuantity  int64  `json:"initial_quantity"`
	AddedStock       int64  `json:"added_stock"`
	UnitsSold        int64  `json:"units_sold"`
	CountedQuantity  int64  `json:"counted_quantity"`
	ExpectedQuantity int64  `json:"expected_quantity"`
	Discrepancy      int64  `json:"discrepancy"`
}

type SalesRow struct {
	ProductID   uint            `json:"product_id"`
	Code        string          `json:"code"`
	Variant     string          `json:"variant"`
	ProductType string          `json:"product_type"`
	Name        string          `json:"name"`
	UnitsSold   int64           `json:"units_sold"`
	Price       decimal.Decimal `json:"price"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type ProductSales struct {
	ProductID  uint            `json:"product_id"`
	Name       string          `json:"name"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

type Series struct {
	Name string    `json:"name"`
	Data [12]int64 `json:"data"`
}

type SalesPoint struct {
	Period        string `json:"period"`
	TotalQuantity int64  `json:"total_quantity"`
}

type ProductRevenue struct {
	Name         string          `json:"name"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// ReportRepository computes read-only views over the ledger tables.
type ReportRepository struct {
	db  *db.DB
	log *zap.Logger
}

func NewReportRepository(database *db.DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{db: database, log: logger}
}

// Units sold counts every order: orders decrement stock when registered,
// whatever their status.
const inventoryReportSQL = `
SELECT p.id AS product_id, p.code, p.variant, p.product_type, p.name,
       p.quantity AS counted_quantity, p.registered_quantity,
       COALESCE(o.units, 0) AS units_sold,
       COALESCE(f.units, 0) + COALESCE(po.units, 0) AS added_stock
FROM products p
LEFT JOIN (SELECT product_id, CAST(SUM(quantity) AS BIGINT) AS units FROM orders GROUP BY product_id) o
       ON o.product_id = p.id
LEFT JOIN (SELECT product_id, CAST(SUM(quantity) AS BIGINT) AS units FROM fresh_products GROUP BY product_id) f
       ON f.product_id = p.id
LEFT JOIN (SELECT product_id, CAST(SUM(quantity) AS BIGINT) AS units FROM purchase_orders GROUP BY product_id) po
       ON po.product_id = p.id
ORDER BY p.product_type DESC, p.code ASC`

const salesReportSQL = `
SELECT p.id AS product_id, p.code, p.variant, p.product_type, p.name, p.price,
       COALESCE(s.units, 0) AS units_sold
FROM products p
LEFT JOIN (SELECT product_id, CAST(SUM(quantity) AS BIGINT) AS units FROM orders WHERE status <> ? GROUP BY product_id) s
       ON s.product_id = p.id
ORDER BY p.product_type DESC, p.code ASC`

// InventoryReport returns one reconciliation row per product.
func (r *ReportRepository) InventoryReport(ctx context.Context) ([]InventoryRow, error) {
	var scanned []struct {
		ProductID          uint
		Code               string
		Variant            string
		ProductType        string
		Name               string
		CountedQuantity    int64
		RegisteredQuantity int64
		UnitsSold          int64
		AddedStock         int64
	}
	if err := r.db.WithContext(ctx).Raw(inventoryReportSQL).Scan(&scanned).Error; err != nil {
		r.log.Error("Failed to build inventory report", zap.Error(err))
		return nil, err
	}

	rows := make([]InventoryRow, 0, len(scanned))
	for _, s := range scanned {
		expected := s.RegisteredQuantity + s.AddedStock - s.UnitsSold
		rows = append(rows, InventoryRow{
			ProductID:        s.ProductID,
			Code:             s.Code,
			Variant:          s.Variant,
			ProductType:      s.ProductType,
			Name:             s.Name,
			InitialQuantity:  s.CountedQuantity + s.UnitsSold - s.AddedStock,
			AddedStock:       s.AddedStock,
			UnitsSold:        s.UnitsSold,
			CountedQuantity:  s.CountedQuantity,
			ExpectedQuantity: expected,
			Discrepancy:      s.CountedQuantity - expected,
		})
	}
	return rows, nil
}

// SalesReport returns units sold and revenue per product over orders that
// are no longer pending. Revenue uses the current price.
func (r *ReportRepository) SalesReport(ctx context.Context) ([]SalesRow, error) {
	var rows []SalesRow
	if err := r.db.WithContext(ctx).Raw(salesReportSQL, db.OrderStatusPending).Scan(&rows).Error; err != nil {
		r.log.Error("Failed to build sales report", zap.Error(err))
		return nil, err
	}
	for i := range rows {
		rows[i].Revenue = rows[i].Price.Mul(decimal.NewFromInt(rows[i].UnitsSold))
	}
	return rows, nil
}

func (r *ReportRepository) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	rows, err := r.SalesReport(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Revenue)
	}
	return total, nil
}

// SalesByProduct lists products with realized sales, by name.
func (r *ReportRepository) SalesByProduct(ctx context.Context) ([]ProductSales, error) {
	rows, err := r.SalesReport(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductSales, 0, len(rows))
	for _, row := range rows {
		if row.UnitsSold == 0 {
			continue
		}
		out = append(out, ProductSales{ProductID: row.ProductID, Name: row.Name, TotalSales: row.Revenue})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ProductRevenue ranks products by realized revenue, highest first.
func (r *ReportRepository) ProductRevenue(ctx context.Context) ([]ProductRevenue, error) {
	rows, err := r.SalesReport(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductRevenue, 0, len(rows))
	for _, row := range rows {
		if row.UnitsSold == 0 {
			continue
		}
		out = append(out, ProductRevenue{Name: row.Name, TotalRevenue: row.Revenue})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalRevenue.GreaterThan(out[j].TotalRevenue) })
	return out, nil
}

type saleLine struct {
	ProductName string
	Quantity    int64
	UpdatedAt   time.Time
}

// saleLines loads non-pending orders last updated in [from, to).
func (r *ReportRepository) saleLines(ctx context.Context, from, to time.Time) ([]saleLine, error) {
	var lines []saleLine
	query := r.db.WithContext(ctx).
		Table("orders AS o").
		Select("p.name AS product_name, o.quantity, o.updated_at").
		Joins("JOIN products p ON p.id = o.product_id").
		Where("o.status <> ?", db.OrderStatusPending)
	if !from.IsZero() {
		// Timestamps are stored in UTC.
		query = query.Where("o.updated_at >= ? AND o.updated_at < ?", from.UTC(), to.UTC())
	}
	if err := query.Scan(&lines).Error; err != nil {
		r.log.Error("Failed to load sales", zap.Error(err))
		return nil, err
	}
	return lines, nil
}

// Seasonality returns units sold per product per calendar month of year.
// A zero year covers all years.
func (r *ReportRepository) Seasonality(ctx context.Context, year int, loc *time.Location) ([]Series, error) {
	var from, to time.Time
	if year > 0 {
		from = time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(1, 0, 0)
	}
	lines, err := r.saleLines(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Series)
	for _, l := range lines {
		s, ok := byName[l.ProductName]
		if !ok {
			s = &Series{Name: l.ProductName}
			byName[l.ProductName] = s
		}
		s.Data[l.UpdatedAt.In(loc).Month()-1] += l.Quantity
	}

	out := make([]Series, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DailySales buckets the current month's sales by day.
func (r *ReportRepository) DailySales(ctx context.Context, now time.Time) ([]SalesPoint, error) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return r.bucket(ctx, from, from.AddDate(0, 1, 0), now.Location(), "2006-01-02")
}

// MonthlySales buckets the current year's sales by month.
func (r *ReportRepository) MonthlySales(ctx context.Context, now time.Time) ([]SalesPoint, error) {
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return r.bucket(ctx, from, from.AddDate(1, 0, 0), now.Location(), "2006-01")
}

// YearlySales buckets the last five years of sales, current year included.
func (r *ReportRepository) YearlySales(ctx context.Context, now time.Time) ([]SalesPoint, error) {
	from := time.Date(now.Year()-4, time.January, 1, 0, 0, 0, 0, now.Location())
	return r.bucket(ctx, from, from.AddDate(5, 0, 0), now.Location(), "2006")
}

func (r *ReportRepository) bucket(ctx context.Context, from, to time.Time, loc *time.Location, layout string) ([]SalesPoint, error) {
	lines, err := r.saleLines(ctx, from, to)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64)
	for _, l := range lines {
		totals[l.UpdatedAt.In(loc).Format(layout)] += l.Quantity
	}

	out := make([]SalesPoint, 0, len(totals))
	for period, qty := range totals {
		out = append(out, SalesPoint{Period: period, TotalQuantity: qty})
	}
	// Layouts are zero padded, so lexical order is chronological.
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}
