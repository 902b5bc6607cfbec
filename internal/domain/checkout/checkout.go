package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// SuccessMessage is returned with every committed checkout.
const SuccessMessage = "Order created successfully!"

var (
	// ErrEmptyProducts is returned when a checkout names no products.
	ErrEmptyProducts = errors.New("product ids required")
	// ErrDuplicateRequest is returned when an idempotency key was already used.
	ErrDuplicateRequest = errors.New("duplicate checkout request")
)

// UnauthorizedAccessError indicates a caller tried to check out on behalf of
// another user.
type UnauthorizedAccessError struct {
	RequestedUserID     int64
	AuthenticatedUserID int64
}

func (e *UnauthorizedAccessError) Error() string {
	return fmt.Sprintf("user %d cannot check out on behalf of user %d",
		e.AuthenticatedUserID, e.RequestedUserID)
}

// Request is a checkout submitted by a user.
type Request struct {
	UserID int64
	// ProductIDs lists one entry per line; repeated ids buy repeated units.
	ProductIDs []string
	// DiscountCodes are applied in submission order.
	DiscountCodes []string
	// IdempotencyKey optionally guards against double submission.
	IdempotencyKey string
}

// Result is returned for a committed checkout.
type Result struct {
	Message    string
	FinalPrice decimal.Decimal
	OrderID    string
}

// Repositories are the stores a checkout commit writes to. Within a unit of
// work they all share one transaction.
type Repositories struct {
	Users     user.Repository
	Products  product.Repository
	Discounts discount.Repository
	Orders    order.Repository
}

// UnitOfWork runs fn atomically: either every write made through repos
// becomes visible, or none does.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Deduplicator claims idempotency keys.
type Deduplicator interface {
	// Acquire claims key, reporting false when it is already held.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release frees key so it can be claimed again.
	Release(ctx context.Context, key string) error
}
