package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the immutable record of a successful checkout.
type Order struct {
	ID         string
	UserID     int64
	ProductIDs []string
	FinalPrice decimal.Decimal
	CreatedAt  time.Time
}

// Repository defines persistence operations for orders. Orders are only ever
// created, never changed.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	// ListByUser returns the orders of userID, oldest first.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
}
