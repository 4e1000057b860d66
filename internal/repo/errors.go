package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stockledger/inventory/internal/apperr"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound       = apperr.NotFound("product_not_found", "product not found")
	ErrOrderNotFound         = apperr.NotFound("order_not_found", "order not found")
	ErrPurchaseOrderNotFound = apperr.NotFound("purchase_order_not_found", "purchase order not found")
	ErrFreshStockNotFound    = apperr.NotFound("fresh_stock_not_found", "fresh stock entry not found")
	ErrCustomerNotFound      = apperr.NotFound("customer_not_found", "customer not found")
	ErrSupplierNotFound      = apperr.NotFound("supplier_not_found", "supplier not found")
	ErrUserNotFound          = apperr.NotFound("user_not_found", "user not found")

	ErrDuplicateCode     = apperr.Conflict("duplicate_code", "product code already exists")
	ErrDuplicateVariant  = apperr.Conflict("duplicate_variant", "product variant already exists")
	ErrDuplicateUsername = apperr.Conflict("duplicate_username", "username already exists")
	ErrCodeExhausted     = apperr.Conflict("code_exhausted", "could not generate a unique product code")
	ErrProductInUse      = apperr.Conflict("product_in_use", "product is referenced by orders or stock movements")

	ErrInsufficientStock = apperr.InvalidInput("insufficient_stock", "quantity would drop below zero")
	ErrInvalidQuantity   = apperr.InvalidInput("invalid_quantity", "quantity must be a number greater than or equal to zero")
	ErrInvalidOrderQty   = apperr.InvalidInput("invalid_quantity", "order quantity must be at least one")
	ErrInvalidPrice      = apperr.InvalidInput("invalid_price", "price must be a number greater than or equal to zero")
	ErrInvalidPayment    = apperr.InvalidInput("invalid_payment", "payment must be a number greater than or equal to zero")
)

// isUniqueViolation reports whether err is a unique constraint failure,
// whether or not the dialector translated it.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
