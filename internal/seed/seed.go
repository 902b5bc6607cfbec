// Package seed loads demo users, products and discounts into a store.
//
// Seed files are JSON, optionally gzip-compressed:
//
//	{
//	  "users":     [{"username": "alice", "password": "...", "email": "..."}],
//	  "products":  [{"id": "p1", "name": "...", "price": "99.99", "stock": 10}],
//	  "discounts": [{"code": "SAVE10", "percentage": "10", "type": "GENERAL",
//	                 "validFrom": "2025-01-01", "validUntil": "2025-12-31",
//	                 "usageLimit": 100, "applicableProducts": ["p1"]}]
//	}
package seed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/internal/auth"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

const dateLayout = time.DateOnly

// Sink receives seed records. Upserts are keyed by username, product id and
// discount code, so applying the same catalog twice is harmless.
type Sink interface {
	UpsertUser(ctx context.Context, u *user.User) error
	UpsertProduct(ctx context.Context, p product.Product) error
	UpsertDiscount(ctx context.Context, d *discount.Discount) error
}

// Date is a calendar day encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "date")
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return errors.Wrapf(err, "parse date %q", s)
	}
	d.Time = t
	return nil
}

// User is a seed user. Exactly one of Password and PasswordHash is expected;
// a plain password is hashed before storing.
type User struct {
	Username     string `json:"username" validate:"required,max=50"`
	Password     string `json:"password" validate:"required_without=PasswordHash"`
	PasswordHash string `json:"passwordHash"`
	Email        string `json:"email" validate:"omitempty,email"`
	FirstName    string `json:"firstName" validate:"max=50"`
	LastName     string `json:"lastName" validate:"max=50"`
	PhoneNumber  string `json:"phoneNumber" validate:"max=20"`
}

// Product is a seed product.
type Product struct {
	ID    string          `json:"id" validate:"required"`
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock" validate:"gte=0"`
}

// Discount is a seed discount.
type Discount struct {
	Code               string          `json:"code" validate:"required"`
	Percentage         decimal.Decimal `json:"percentage"`
	Type               string          `json:"type" validate:"oneof=GENERAL PRODUCT_SPECIFIC"`
	ValidFrom          Date            `json:"validFrom"`
	ValidUntil         Date            `json:"validUntil"`
	UsageLimit         int             `json:"usageLimit" validate:"gte=0"`
	ApplicableProducts []string        `json:"applicableProducts" validate:"dive,required"`
}

// Catalog is the content of a seed file.
type Catalog struct {
	Users     []User     `json:"users" validate:"dive"`
	Products  []Product  `json:"products" validate:"dive"`
	Discounts []Discount `json:"discounts" validate:"dive"`
}

// Validate checks field constraints and cross references.
func (c *Catalog) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return errors.Wrap(err, "validate catalog")
	}

	products := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if p.Price.IsNegative() {
			return errors.Errorf("product %s: negative price", p.ID)
		}
		products[p.ID] = struct{}{}
	}
	for _, d := range c.Discounts {
		if d.Percentage.IsNegative() || d.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return errors.Errorf("discount %s: percentage %s out of range", d.Code, d.Percentage)
		}
		if d.ValidUntil.Before(d.ValidFrom.Time) {
			return errors.Errorf("discount %s: validity ends before it starts", d.Code)
		}
		if discount.Kind(d.Type) == discount.KindGeneral && len(d.ApplicableProducts) > 0 {
			return errors.Errorf("discount %s: general discounts apply to the whole order", d.Code)
		}
		for _, id := range d.ApplicableProducts {
			if _, ok := products[id]; !ok {
				return errors.Errorf("discount %s: unknown product %s", d.Code, id)
			}
		}
	}
	return nil
}

// Decode reads a catalog from r, transparently decompressing gzip input.
func Decode(r io.Reader) (*Catalog, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	} else {
		r = br
	}

	var c Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads and validates the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Options tune Apply.
type Options struct {
	// BcryptCost is used to hash plain passwords. Zero selects the bcrypt
	// default.
	BcryptCost int
}

// Apply writes every record of c to sink: users first, then products, then
// discounts, which may reference products.
func Apply(ctx context.Context, sink Sink, c *Catalog, opts Options) error {
	lg := zctx.From(ctx)

	for _, su := range c.Users {
		hash := su.PasswordHash
		if hash == "" {
			var err error
			if hash, err = auth.HashPassword(su.Password, opts.BcryptCost); err != nil {
				return errors.Wrapf(err, "user %s", su.Username)
			}
		}
		u := &user.User{
			Username:     su.Username,
			PasswordHash: hash,
			Email:        su.Email,
			FirstName:    su.FirstName,
			LastName:     su.LastName,
			PhoneNumber:  su.PhoneNumber,
		}
		if err := sink.UpsertUser(ctx, u); err != nil {
			return errors.Wrapf(err, "upsert user %s", su.Username)
		}
		lg.Debug("Seeded user", zap.String("username", u.Username), zap.Int64("id", u.ID))
	}

	for _, sp := range c.Products {
		p := product.Product{ID: sp.ID, Name: sp.Name, Price: sp.Price, Stock: sp.Stock}
		if err := sink.UpsertProduct(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", sp.ID)
		}
	}

	for _, sd := range c.Discounts {
		d := &discount.Discount{
			Code:               sd.Code,
			Percentage:         sd.Percentage,
			Kind:               discount.Kind(sd.Type),
			StartDate:          sd.ValidFrom.Time,
			EndDate:            sd.ValidUntil.Time,
			UsageLimit:         sd.UsageLimit,
			ApplicableProducts: sd.ApplicableProducts,
		}
		if err := sink.UpsertDiscount(ctx, d); err != nil {
			return errors.Wrapf(err, "upsert discount %s", sd.Code)
		}
	}

	lg.Info("Seed applied",
		zap.Int("users", len(c.Users)),
		zap.Int("products", len(c.Products)),
		zap.Int("discounts", len(c.Discounts)),
	)
	return nil
}
