package checkout

import (
	"github.com/go-faster/errors"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/pricing"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// Checkout outcomes, as recorded on metrics and spans.
const (
	OutcomeCommitted    = "committed"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeConflict     = "conflict"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// Outcome classifies the error returned by ProcessCheckout.
func Outcome(err error) string {
	var (
		unauthorized *UnauthorizedAccessError
		stock        *product.InsufficientStockError
		exhausted    *discount.ExhaustedError
		expired      *discount.ExpiredError
		excessive    *pricing.ExcessiveDiscountError
	)
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.As(err, &unauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return OutcomeNotFound
	case errors.As(err, &stock),
		errors.As(err, &exhausted),
		errors.Is(err, ErrDuplicateRequest):
		return OutcomeConflict
	case errors.As(err, &expired),
		errors.As(err, &excessive),
		errors.Is(err, ErrEmptyProducts):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
