package discount

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates how a discount selects what it reduces.
type Kind string

const (
	// KindGeneral reduces the running order subtotal.
	KindGeneral Kind = "GENERAL"
	// KindProductSpecific reduces only lines whose product is in the
	// discount's applicable set.
	KindProductSpecific Kind = "PRODUCT_SPECIFIC"
)

// ErrNotFound is returned by repositories when no discount has the given id.
var ErrNotFound = errors.New("discount not found")

// Discount is a percentage reduction redeemable by code.
//
// StartDate and EndDate are calendar days; both are inclusive. UsageLimit is
// the number of redemptions left.
type Discount struct {
	ID                 int64
	Code               string
	Percentage         decimal.Decimal
	Kind               Kind
	StartDate          time.Time
	EndDate            time.Time
	UsageLimit         int
	ApplicableProducts []string
}

// AppliesTo reports whether a product-specific discount covers productID.
// General discounts never match individual lines.
func (d Discount) AppliesTo(productID string) bool {
	return d.Kind == KindProductSpecific && slices.Contains(d.ApplicableProducts, productID)
}

// ActiveOn reports whether at falls within the validity window.
func (d Discount) ActiveOn(at time.Time) bool {
	day := dateOf(at)
	return !day.Before(dateOf(d.StartDate)) && !day.After(dateOf(d.EndDate))
}

// dateOf truncates t to midnight UTC of its calendar day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NotFoundError indicates a submitted code matches no discount.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("discount %s not found", e.Code)
}

// Is lets errors.Is(err, ErrNotFound) match typed not-found errors.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ExpiredError indicates a discount is outside its validity window.
type ExpiredError struct {
	Code string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("discount %s is not valid at this time", e.Code)
}

// ExhaustedError indicates a discount has no redemptions left.
type ExhaustedError struct {
	Code string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("discount %s has reached its usage limit", e.Code)
}

// Repository provides lookup and usage accounting of discounts.
//
// DecrementUsage must be a guarded update: it reports false without changing
// anything when the discount has no redemptions left.
type Repository interface {
	FindByCodes(ctx context.Context, codes []string) ([]Discount, error)
	ListCodes(ctx context.Context) ([]string, error)
	DecrementUsage(ctx context.Context, id int64) (bool, error)
	IncrementUsage(ctx context.Context, id int64) error
}
