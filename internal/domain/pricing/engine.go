// Package pricing computes checkout prices from product lines and eligible
// discounts. It performs no I/O.
//
// Discounts compose in two fixed passes:
//
//  1. Product-specific discounts reduce each matching line by its percentage,
//     in the order the discounts were supplied. Several discounts on one
//     line compound.
//  2. General discounts multiply the running subtotal by (1 - p/100), in
//     supplied order, compounding as well.
//
// The total is rounded to cents once, after both passes.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/domain/discount"
)

// DefaultMaxDiscountPercentage is the largest percentage a single discount may
// carry.
const DefaultMaxDiscountPercentage = 50

var hundred = decimal.NewFromInt(100)

// ExcessiveDiscountError indicates a discount's percentage exceeds the
// configured maximum.
type ExcessiveDiscountError struct {
	Code       string
	Percentage decimal.Decimal
	Max        decimal.Decimal
}

func (e *ExcessiveDiscountError) Error() string {
	return fmt.Sprintf("discount %s of %s%% exceeds the maximum of %s%%",
		e.Code, e.Percentage.String(), e.Max.String())
}

// Line is one product occurrence in a checkout.
type Line struct {
	ProductID string
	UnitPrice decimal.Decimal
}

// PricedLine is a line after product-specific discounts.
type PricedLine struct {
	ProductID string
	UnitPrice decimal.Decimal
	Price     decimal.Decimal
}

// Quote is the result of pricing a checkout.
type Quote struct {
	Lines []PricedLine
	// Gross is the sum of undiscounted unit prices.
	Gross decimal.Decimal
	// Subtotal is the sum of line prices after product-specific discounts.
	Subtotal decimal.Decimal
	// Total is the final price, rounded to 2 decimal places.
	Total decimal.Decimal
	// Discounts are the applied discounts in application order.
	Discounts []discount.Discount
}

// Engine prices checkouts.
type Engine struct {
	maxPercentage decimal.Decimal
}

// NewEngine returns an Engine rejecting any discount above maxPercentage.
func NewEngine(maxPercentage decimal.Decimal) *Engine {
	return &Engine{maxPercentage: maxPercentage}
}

// NewDefaultEngine returns an Engine using DefaultMaxDiscountPercentage.
func NewDefaultEngine() *Engine {
	return NewEngine(decimal.NewFromInt(DefaultMaxDiscountPercentage))
}

// Quote prices lines under discounts. Every discount is checked against the
// maximum before anything is computed.
func (e *Engine) Quote(lines []Line, discounts []discount.Discount) (*Quote, error) {
	for _, d := range discounts {
		if d.Percentage.GreaterThan(e.maxPercentage) {
			return nil, &ExcessiveDiscountError{
				Code:       d.Code,
				Percentage: d.Percentage,
				Max:        e.maxPercentage,
			}
		}
	}

	q := &Quote{
		Lines:     make([]PricedLine, len(lines)),
		Gross:     decimal.Zero,
		Subtotal:  decimal.Zero,
		Discounts: discounts,
	}

	for i, l := range lines {
		price := l.UnitPrice
		for _, d := range discounts {
			if d.AppliesTo(l.ProductID) {
				price = price.Sub(price.Mul(d.Percentage).Div(hundred))
			}
		}
		q.Lines[i] = PricedLine{ProductID: l.ProductID, UnitPrice: l.UnitPrice, Price: price}
		q.Gross = q.Gross.Add(l.UnitPrice)
		q.Subtotal = q.Subtotal.Add(price)
	}

	total := q.Subtotal
	for _, d := range discounts {
		if d.Kind != discount.KindGeneral {
			continue
		}
		total = total.Mul(decimal.NewFromInt(1).Sub(d.Percentage.Div(hundred)))
	}
	q.Total = total.Round(2)

	return q, nil
}
