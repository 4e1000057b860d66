package repo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/pkg/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database))
	return database
}

// fixture bundles the repositories over one database plus a customer,
// supplier and user that ledger rows can point at.
type fixture struct {
	db        *db.DB
	log       *zap.Logger
	catalog   *CatalogRepository
	ledger    *LedgerRepository
	reports   *ReportRepository
	directory *DirectoryRepository
	outbox    *OutboxRepository

	customer *db.Customer
	supplier *db.Supplier
	user     *db.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	f := &fixture{
		db:        database,
		log:       log,
		catalog:   NewCatalogRepository(database, log),
		ledger:    NewLedgerRepository(database, log),
		reports:   NewReportRepository(database, log),
		directory: NewDirectoryRepository(database, log),
		outbox:    NewOutboxRepository(database, log),
	}

	ctx := context.Background()
	var err error
	f.customer, err = f.directory.RegisterCustomer(ctx, ContactInput{Username: "acme", Name: "Acme Corp"})
	require.NoError(t, err)
	f.supplier, err = f.directory.RegisterSupplier(ctx, ContactInput{Username: "globex", Name: "Globex"})
	require.NoError(t, err)
	f.user, err = f.directory.RegisterUser(ctx, ContactInput{Username: "clerk", Name: "Store Clerk"})
	require.NoError(t, err)
	return f
}

func (f *fixture) product(t *testing.T, variant string, qty int64, price string) *db.Product {
	t.Helper()
	p, err := f.catalog.RegisterProduct(context.Background(), ProductInput{
		Variant:     variant,
		ProductType: db.ProductTypeProduct,
		Name:        "Widget " + variant,
		Quantity:    qty,
		Price:       decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) order(t *testing.T, productID uint, qty int64, status string) *db.Order {
	t.Helper()
	o, _, err := f.ledger.RegisterOrder(context.Background(), OrderInput{
		CustomerID: f.customer.ID,
		ProductID:  productID,
		UserID:     f.user.ID,
		Quantity:   qty,
		Status:     status,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) quantity(t *testing.T, productID uint) int64 {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) countEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&db.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

// onceOn builds a gorm callback that calls fn a single time, on the first
// statement match accepts. fn gets a fresh session on the same connection,
// so its writes land inside the running transaction the way a concurrent
// commit would be seen by the next statement.
func onceOn(match func(*gorm.DB) bool, fn func(*gorm.DB)) func(*gorm.DB) {
	done := false
	return func(tx *gorm.DB) {
		if done || !match(tx) {
			return
		}
		done = true
		fn(tx.Session(&gorm.Session{NewDB: true}))
	}
}

func onTable(table string) func(*gorm.DB) bool {
	return func(tx *gorm.DB) bool { return tx.Statement.Table == table }
}
