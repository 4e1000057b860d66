package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventVersion = "1.0.0"

	EventTypeStockAdjusted   = "inventory.stock.adjusted"
	EventTypePriceChanged    = "inventory.price.changed"
	EventTypeProductCreated  = "inventory.product.created"
	EventTypeProductUpdated  = "inventory.product.updated"
	EventTypeProductDeleted  = "inventory.product.deleted"
	EventTypeOrderRegistered = "inventory.order.registered"
)

// Stock movement sources carried on StockAdjusted.
const (
	SourceOrder          = "order"
	SourceOrderUpdate    = "order.update"
	SourceOrderDelete    = "order.delete"
	SourceRestock        = "purchase.restock"
	SourceNewProduct     = "purchase.new_product"
	SourcePurchaseDelete = "purchase.delete"
	SourceFreshStock     = "fresh"
	SourceFreshUpdate    = "fresh.update"
	SourceFreshDelete    = "fresh.delete"
	SourceManual         = "manual"
)

// Event is the envelope published for every domain event.
type Event struct {
	EventID       string      `json:"event_id"`
	EventType     string      `json:"event_type"`
	EventVersion  string      `json:"event_version"`
	Timestamp     string      `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Payload       interface{} `json:"payload"`
}

// New builds an envelope stamped with a fresh id and the correlation id
// carried by ctx, if any.
func New(ctx context.Context, eventType string, payload interface{}) Event {
	return Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: CorrelationID(ctx),
		Payload:       payload,
	}
}

type StockAdjustedPayload struct {
	ProductID   uint   `json:"product_id"`
	Delta       int64  `json:"delta"`
	NewQuantity int64  `json:"new_quantity"`
	Source      string `json:"source"`
	ReferenceID uint   `json:"reference_id,omitempty"`
}

type PriceChangedPayload struct {
	ProductID     uint            `json:"product_id"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
}

type ProductCreatedPayload struct {
	ProductID   uint            `json:"product_id"`
	Code        string          `json:"code"`
	Variant     string          `json:"variant"`
	ProductType string          `json:"product_type"`
	Name        string          `json:"name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type ProductUpdatedPayload struct {
	ProductID     uint     `json:"product_id"`
	FieldsChanged []string `json:"fields_changed"`
}

type ProductDeletedPayload struct {
	ProductID uint   `json:"product_id"`
	Code      string `json:"code"`
}

type OrderRegisteredPayload struct {
	OrderID    uint            `json:"order_id"`
	ProductID  uint            `json:"product_id"`
	CustomerID uint            `json:"customer_id"`
	Quantity   int64           `json:"quantity"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
}

type correlationKey struct{}

// WithCorrelationID returns a context carrying id for outgoing events.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
