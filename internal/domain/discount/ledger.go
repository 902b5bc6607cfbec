package discount

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
)

// Ledger resolves discount codes and accounts for their redemptions.
type Ledger struct {
	repo  Repository
	index *CodeIndex
	now   func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithCodeIndex attaches an index of known codes. The index is only a hint:
// codes it has not seen are still confirmed against the repository, and codes
// found there are added to it.
func WithCodeIndex(idx *CodeIndex) LedgerOption {
	return func(l *Ledger) {
		l.index = idx
	}
}

// WithClock overrides the time source used for validity checks.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository, opts ...LedgerOption) *Ledger {
	l := &Ledger{repo: repo, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Resolve looks up every code and checks it is redeemable now. The result
// keeps submission order; a code submitted more than once is resolved once,
// at its first position.
//
// Errors: *NotFoundError, *ExpiredError, *ExhaustedError for the first
// offending code in submission order.
func (l *Ledger) Resolve(ctx context.Context, codes []string) ([]Discount, error) {
	codes = uniqueCodes(codes)
	if len(codes) == 0 {
		return nil, nil
	}

	found, err := l.repo.FindByCodes(ctx, codes)
	if err != nil {
		return nil, errors.Wrap(err, "find discounts")
	}
	byCode := make(map[string]Discount, len(found))
	for _, d := range found {
		byCode[d.Code] = d
		if l.index != nil && !l.index.MayContain(d.Code) {
			// Created after the last refresh.
			l.index.Add(d.Code)
		}
	}

	now := l.now()
	out := make([]Discount, 0, len(codes))
	for _, code := range codes {
		d, ok := byCode[code]
		switch {
		case !ok:
			return nil, &NotFoundError{Code: code}
		case !d.ActiveOn(now):
			return nil, &ExpiredError{Code: code}
		case d.UsageLimit <= 0:
			return nil, &ExhaustedError{Code: code}
		}
		out = append(out, d)
	}
	return out, nil
}

// RecordUsage takes one redemption from each discount. Either all of them are
// taken or none: when one is exhausted, redemptions already taken by this
// call are returned before *ExhaustedError is reported.
//
// Discounts are redeemed in id order so concurrent redemptions lock rows in
// the same sequence.
func (l *Ledger) RecordUsage(ctx context.Context, discounts []Discount) error {
	ordered := make([]Discount, 0, len(discounts))
	seen := make(map[int64]struct{}, len(discounts))
	for _, d := range discounts {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		ordered = append(ordered, d)
	}
	slices.SortFunc(ordered, func(a, b Discount) int {
		return cmp.Compare(a.ID, b.ID)
	})

	taken := make([]Discount, 0, len(ordered))
	for _, d := range ordered {
		ok, err := l.repo.DecrementUsage(ctx, d.ID)
		if err != nil {
			return errors.Wrapf(err, "decrement usage of %s", d.Code)
		}
		if !ok {
			for _, t := range taken {
				if err := l.repo.IncrementUsage(ctx, t.ID); err != nil {
					return errors.Wrapf(err, "restore usage of %s", t.Code)
				}
			}
			return &ExhaustedError{Code: d.Code}
		}
		taken = append(taken, d)
	}
	return nil
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
