package postgres

import (
	"context"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// Seeder writes seed data through db. It implements seed.Sink.
type Seeder struct {
	users     *UserRepository
	products  *ProductRepository
	discounts *DiscountRepository
}

// NewSeeder returns a Seeder bound to db, usually a transaction.
func NewSeeder(db DBTX) *Seeder {
	return &Seeder{
		users:     NewUserRepository(db),
		products:  NewProductRepository(db),
		discounts: NewDiscountRepository(db),
	}
}

func (s *Seeder) UpsertUser(ctx context.Context, u *user.User) error {
	return s.users.Upsert(ctx, u)
}

func (s *Seeder) UpsertProduct(ctx context.Context, p product.Product) error {
	return s.products.Upsert(ctx, p)
}

func (s *Seeder) UpsertDiscount(ctx context.Context, d *discount.Discount) error {
	return s.discounts.Upsert(ctx, d)
}
