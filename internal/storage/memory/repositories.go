package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// UserRepository implements user.Repository.
type UserRepository struct {
	v view
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	var (
		u  user.User
		ok bool
	)
	r.v.read(func(st *state) {
		u, ok = st.users[id]
	})
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*user.User, error) {
	var (
		u  user.User
		ok bool
	)
	r.v.read(func(st *state) {
		var id int64
		if id, ok = st.usernames[username]; ok {
			u = st.users[id]
		}
	})
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) Exists(_ context.Context, id int64) (bool, error) {
	var ok bool
	r.v.read(func(st *state) {
		_, ok = st.users[id]
	})
	return ok, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, u *user.User) error {
	return r.v.write(func(st *state) error {
		cur, ok := st.users[u.ID]
		if !ok {
			return user.ErrNotFound
		}
		cur.Email = u.Email
		cur.FirstName = u.FirstName
		cur.LastName = u.LastName
		cur.PhoneNumber = u.PhoneNumber
		cur.UpdatedAt = u.UpdatedAt
		st.users[u.ID] = cur
		return nil
	})
}

// Upsert stores u keyed by username, assigning u.ID for new users.
func (r *UserRepository) Upsert(_ context.Context, u *user.User) error {
	if u.Username == "" {
		return errors.New("username required")
	}
	return r.v.write(func(st *state) error {
		if id, ok := st.usernames[u.Username]; ok {
			u.ID = id
		} else {
			u.ID = st.nextUserID
			st.nextUserID++
		}
		st.users[u.ID] = *u
		st.usernames[u.Username] = u.ID
		return nil
	})
}

// ProductRepository implements product.Repository.
type ProductRepository struct {
	v view
}

var _ product.Repository = (*ProductRepository)(nil)

func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	var out []product.Product
	r.v.read(func(st *state) {
		out = make([]product.Product, 0, len(st.products))
		for _, p := range st.products {
			out = append(out, p)
		}
	})
	slices.SortFunc(out, func(a, b product.Product) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	var (
		p  product.Product
		ok bool
	)
	r.v.read(func(st *state) {
		p, ok = st.products[id]
	})
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns the products that exist among ids; missing ids are
// skipped.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	r.v.read(func(st *state) {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

func (r *ProductRepository) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	var taken bool
	err := r.v.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		if p.Stock < qty {
			return nil
		}
		p.Stock -= qty
		st.products[id] = p
		taken = true
		return nil
	})
	return taken, err
}

func (r *ProductRepository) IncrementStock(_ context.Context, id string, qty int) error {
	return r.v.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		p.Stock += qty
		st.products[id] = p
		return nil
	})
}

// Upsert stores p keyed by its id.
func (r *ProductRepository) Upsert(_ context.Context, p product.Product) error {
	if p.ID == "" {
		return errors.New("product id required")
	}
	if p.Stock < 0 {
		return errors.Errorf("product %s: negative stock", p.ID)
	}
	return r.v.write(func(st *state) error {
		st.products[p.ID] = p
		return nil
	})
}

// DiscountRepository implements discount.Repository.
type DiscountRepository struct {
	v view
}

var _ discount.Repository = (*DiscountRepository)(nil)

func (r *DiscountRepository) FindByCodes(_ context.Context, codes []string) ([]discount.Discount, error) {
	out := make([]discount.Discount, 0, len(codes))
	r.v.read(func(st *state) {
		for _, code := range codes {
			if id, ok := st.codes[code]; ok {
				out = append(out, cloneDiscount(st.discounts[id]))
			}
		}
	})
	return out, nil
}

func (r *DiscountRepository) ListCodes(_ context.Context) ([]string, error) {
	var out []string
	r.v.read(func(st *state) {
		out = make([]string, 0, len(st.codes))
		for code := range st.codes {
			out = append(out, code)
		}
	})
	slices.Sort(out)
	return out, nil
}

func (r *DiscountRepository) DecrementUsage(_ context.Context, id int64) (bool, error) {
	var taken bool
	err := r.v.write(func(st *state) error {
		d, ok := st.discounts[id]
		if !ok {
			return discount.ErrNotFound
		}
		if d.UsageLimit < 1 {
			return nil
		}
		d.UsageLimit--
		st.discounts[id] = d
		taken = true
		return nil
	})
	return taken, err
}

func (r *DiscountRepository) IncrementUsage(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		d, ok := st.discounts[id]
		if !ok {
			return discount.ErrNotFound
		}
		d.UsageLimit++
		st.discounts[id] = d
		return nil
	})
}

// Upsert stores d keyed by code, assigning d.ID for new discounts.
func (r *DiscountRepository) Upsert(_ context.Context, d *discount.Discount) error {
	if d.Code == "" {
		return errors.New("discount code required")
	}
	if d.UsageLimit < 0 {
		return errors.Errorf("discount %s: negative usage limit", d.Code)
	}
	return r.v.write(func(st *state) error {
		if id, ok := st.codes[d.Code]; ok {
			d.ID = id
		} else {
			d.ID = st.nextDiscountID
			st.nextDiscountID++
		}
		st.discounts[d.ID] = cloneDiscount(*d)
		st.codes[d.Code] = d.ID
		return nil
	})
}

// OrderRepository implements order.Repository.
type OrderRepository struct {
	v view
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return errors.Errorf("order %s already exists", o.ID)
		}
		st.orders[o.ID] = cloneOrder(*o)
		return nil
	})
}

// ListByUser returns the orders of userID, oldest first.
func (r *OrderRepository) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	var out []order.Order
	r.v.read(func(st *state) {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, cloneOrder(o))
			}
		}
	})
	slices.SortFunc(out, func(a, b order.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
