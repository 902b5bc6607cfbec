// Package memory implements the checkout repositories in process memory.
//
// Writes made inside Store.Do are applied to a private copy of the data and
// published only when the callback succeeds, so a failed checkout leaves no
// trace. Transactions are serialized.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

type state struct {
	users     map[int64]user.User
	usernames map[string]int64
	products  map[string]product.Product
	discounts map[int64]discount.Discount
	codes     map[string]int64
	orders    map[string]order.Order

	nextUserID     int64
	nextDiscountID int64
}

func newState() *state {
	return &state{
		users:          make(map[int64]user.User),
		usernames:      make(map[string]int64),
		products:       make(map[string]product.Product),
		discounts:      make(map[int64]discount.Discount),
		codes:          make(map[string]int64),
		orders:         make(map[string]order.Order),
		nextUserID:     1,
		nextDiscountID: 1,
	}
}

// clone copies every map. Slices inside values are never mutated in place,
// so sharing them between copies is safe.
func (s *state) clone() *state {
	return &state{
		users:          maps.Clone(s.users),
		usernames:      maps.Clone(s.usernames),
		products:       maps.Clone(s.products),
		discounts:      maps.Clone(s.discounts),
		codes:          maps.Clone(s.codes),
		orders:         maps.Clone(s.orders),
		nextUserID:     s.nextUserID,
		nextDiscountID: s.nextDiscountID,
	}
}

// view is how repositories reach the data: either the published state or a
// transaction's private copy.
type view interface {
	read(fn func(st *state))
	write(fn func(st *state) error) error
}

// Store is an in-memory database for users, products, discounts and orders.
type Store struct {
	txMu sync.Mutex // serializes writers
	mu   sync.RWMutex
	st   *state
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Do runs fn against a copy of the data and publishes the copy if fn returns
// nil. Reads through the Store's own repositories see the published data;
// writing through them from fn deadlocks.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos checkout.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &txView{st: s.st.clone()}
	s.mu.RUnlock()

	if err := fn(ctx, tx.repositories()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = tx.st
	s.mu.Unlock()
	return nil
}

// Repositories returns repositories reading and writing the published data.
func (s *Store) Repositories() checkout.Repositories {
	return checkout.Repositories{
		Users:     s.Users(),
		Products:  s.Products(),
		Discounts: s.Discounts(),
		Orders:    s.Orders(),
	}
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{v: s} }

// Products returns the product repository.
func (s *Store) Products() *ProductRepository { return &ProductRepository{v: s} }

// Discounts returns the discount repository.
func (s *Store) Discounts() *DiscountRepository { return &DiscountRepository{v: s} }

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{v: s} }

type txView struct {
	st *state
}

func (t *txView) read(fn func(st *state))              { fn(t.st) }
func (t *txView) write(fn func(st *state) error) error { return fn(t.st) }

func (t *txView) repositories() checkout.Repositories {
	return checkout.Repositories{
		Users:     &UserRepository{v: t},
		Products:  &ProductRepository{v: t},
		Discounts: &DiscountRepository{v: t},
		Orders:    &OrderRepository{v: t},
	}
}

func cloneDiscount(d discount.Discount) discount.Discount {
	d.ApplicableProducts = slices.Clone(d.ApplicableProducts)
	return d
}

func cloneOrder(o order.Order) order.Order {
	o.ProductIDs = slices.Clone(o.ProductIDs)
	return o
}

// UpsertUser implements seed.Sink.
func (s *Store) UpsertUser(ctx context.Context, u *user.User) error {
	return s.Users().Upsert(ctx, u)
}

// UpsertProduct implements seed.Sink.
func (s *Store) UpsertProduct(ctx context.Context, p product.Product) error {
	return s.Products().Upsert(ctx, p)
}

// UpsertDiscount implements seed.Sink.
func (s *Store) UpsertDiscount(ctx context.Context, d *discount.Discount) error {
	return s.Discounts().Upsert(ctx, d)
}
