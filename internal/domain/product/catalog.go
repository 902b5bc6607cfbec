package product

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// Catalog resolves checkout lines to products and reserves their stock.
type Catalog struct {
	repo Repository
}

// NewCatalog creates a Catalog backed by the given Repository.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

// Resolve returns one Product per requested id in request order. Repeated ids
// yield repeated products. It fails with *NotFoundError on the first id that
// does not exist.
func (c *Catalog) Resolve(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	fetched, err := c.repo.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	products := make([]Product, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, &NotFoundError{ProductID: id}
		}
		products = append(products, p)
	}
	return products, nil
}

// ReserveStock takes one unit of stock per occurrence of each id. Either every
// decrement is applied or none is: when a product runs short or has been
// removed, units already taken by this call are put back before
// *InsufficientStockError or *NotFoundError is returned.
//
// Products are reserved in id order so concurrent reservations lock rows in
// the same sequence.
func (c *Catalog) ReserveStock(ctx context.Context, ids []string) error {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	ordered := make([]string, 0, len(counts))
	for id := range counts {
		ordered = append(ordered, id)
	}
	slices.Sort(ordered)

	for i, id := range ordered {
		ok, err := c.repo.DecrementStock(ctx, id, counts[id])
		if errors.Is(err, ErrNotFound) {
			if err := c.release(ctx, ordered[:i], counts); err != nil {
				return errors.Wrap(err, "release reserved stock")
			}
			return &NotFoundError{ProductID: id}
		}
		if err != nil {
			// The store is unusable at this point; the enclosing unit of work
			// discards whatever was taken.
			return errors.Wrapf(err, "decrement stock for %s", id)
		}
		if ok {
			continue
		}
		if err := c.release(ctx, ordered[:i], counts); err != nil {
			return errors.Wrap(err, "release reserved stock")
		}
		return &InsufficientStockError{ProductID: id, Requested: counts[id]}
	}
	return nil
}

func (c *Catalog) release(ctx context.Context, ids []string, counts map[string]int) error {
	for _, id := range ids {
		if err := c.repo.IncrementStock(ctx, id, counts[id]); err != nil {
			return errors.Wrapf(err, "increment stock for %s", id)
		}
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
