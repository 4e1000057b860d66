package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PriceAdjustmentNone = "NONE"
	PriceAdjustmentNew  = "NEW"

	// ProductTypeProduct marks the "product" category; every other type
	// is listed under "other".
	ProductTypeProduct = "PRODUCT"

	OrderStatusPending = "PENDING"

	PurchaseKindRestock    = "RESTOCK"
	PurchaseKindNewProduct = "NEW PRODUCT"

	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

func init() {
	// Prices, totals and payments are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is the materialized catalog state of one product.
type Product struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Code               string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_products_code" json:"code"`
	Variant            string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_variant" json:"variant"`
	ProductType        string          `gorm:"type:varchar(100);not null;index:idx_products_type" json:"product_type"`
	Name               string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity           int64           `gorm:"not null;default:0;check:chk_products_quantity,quantity >= 0" json:"quantity"`
	RegisteredQuantity int64           `gorm:"not null;default:0" json:"registered_quantity"`
	Price              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	PriceAdjustment    string          `gorm:"type:varchar(8);not null;default:'NONE'" json:"price_adjustment"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// PriceHistoryEntry is an immutable record of a price a product held.
type PriceHistoryEntry struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	ProductID uint            `gorm:"not null;index:idx_price_history_product" json:"product_id"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CreatedAt time.Time       `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PriceHistoryEntry) TableName() string { return "price_history" }

type Order struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CustomerID uint            `gorm:"not null;index" json:"customer_id"`
	ProductID  uint            `gorm:"not null;index" json:"product_id"`
	UserID     uint            `gorm:"not null" json:"user_id"`
	Quantity   int64           `gorm:"not null" json:"quantity"`
	Status     string          `gorm:"type:varchar(32);not null;default:'PENDING'" json:"status"`
	Total      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `gorm:"index" json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT" json:"-"`
	Product  *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`
	User     *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Order) TableName() string { return "orders" }

type PurchaseOrder struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	SupplierID     uint            `gorm:"not null;index" json:"supplier_id"`
	ProductID      uint            `gorm:"not null;index" json:"product_id"`
	UserID         uint            `gorm:"not null" json:"user_id"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	Payment        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"payment"`
	Kind           string          `gorm:"type:varchar(16);not null" json:"kind"`
	SupplierName   string          `gorm:"type:varchar(255)" json:"supplier_name"`
	ProductName    string          `gorm:"type:varchar(255)" json:"product_name"`
	ProductVariant string          `gorm:"type:varchar(255)" json:"product_variant"`
	UserName       string          `gorm:"type:varchar(255)" json:"user_name"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Supplier *Supplier `gorm:"foreignKey:SupplierID;constraint:OnDelete:RESTRICT" json:"-"`
	Product  *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`
	User     *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

// FreshProduct is an ad hoc restock not tied to a purchase order.
type FreshProduct struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProductID      uint      `gorm:"not null;index" json:"product_id"`
	UserID         uint      `gorm:"not null" json:"user_id"`
	Quantity       int64     `gorm:"not null" json:"quantity"`
	ProductCode    string    `gorm:"type:varchar(32)" json:"product_code"`
	ProductVariant string    `gorm:"type:varchar(255)" json:"product_variant"`
	UserName       string    `gorm:"type:varchar(255)" json:"user_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`
	User    *User    `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (FreshProduct) TableName() string { return "fresh_products" }

type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

type Supplier struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Supplier) TableName() string { return "suppliers" }

// User is the staff member recorded as the actor on ledger rows.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// OutboxEvent is a domain event waiting to be relayed to the broker.
type OutboxEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	EventID     string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"event_id"`
	EventType   string         `gorm:"type:varchar(64);not null" json:"event_type"`
	AggregateID string         `gorm:"type:varchar(64);not null" json:"aggregate_id"`
	Payload     datatypes.JSON `json:"payload"`
	Status      string         `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   *string        `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
