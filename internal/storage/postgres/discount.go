package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/digigoods/internal/domain/discount"
)

const (
	findDiscountsByCodesSQL = `SELECT d.id, d.code, d.percentage, d.discount_type, d.valid_from, d.valid_until, d.usage_limit,
			COALESCE(array_agg(dp.product_id ORDER BY dp.product_id) FILTER (WHERE dp.product_id IS NOT NULL), '{}')
		FROM discounts d
		LEFT JOIN discount_products dp ON dp.discount_id = d.id
		WHERE d.code = ANY($1)
		GROUP BY d.id`

	listDiscountCodesSQL = `SELECT code FROM discounts ORDER BY code`

	decrementUsageSQL = `UPDATE discounts SET usage_limit = usage_limit - 1 WHERE id = $1 AND usage_limit >= 1`

	incrementUsageSQL = `UPDATE discounts SET usage_limit = usage_limit + 1 WHERE id = $1`

	upsertDiscountSQL = `INSERT INTO discounts (code, percentage, discount_type, valid_from, valid_until, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			percentage = EXCLUDED.percentage,
			discount_type = EXCLUDED.discount_type,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			usage_limit = EXCLUDED.usage_limit
		RETURNING id`

	clearDiscountProductsSQL = `DELETE FROM discount_products WHERE discount_id = $1`

	insertDiscountProductsSQL = `INSERT INTO discount_products (discount_id, product_id)
		SELECT $1, unnest($2::text[])`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	db DBTX
}

// NewDiscountRepository returns a DiscountRepository that uses db.
func NewDiscountRepository(db DBTX) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// FindByCodes returns the discounts whose code is in codes, with their
// applicable products.
func (r *DiscountRepository) FindByCodes(ctx context.Context, codes []string) ([]discount.Discount, error) {
	rows, err := r.db.Query(ctx, findDiscountsByCodesSQL, codes)
	if err != nil {
		return nil, errors.Wrap(err, "find discounts by codes")
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// ListCodes returns every known discount code.
func (r *DiscountRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, listDiscountCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list discount codes")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// DecrementUsage takes one redemption, reporting false when none are left.
func (r *DiscountRepository) DecrementUsage(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, decrementUsageSQL, id)
	if err != nil {
		return false, errors.Wrapf(err, "decrement usage of discount %d", id)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementUsage returns one redemption.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, incrementUsageSQL, id)
	if err != nil {
		return errors.Wrapf(err, "increment usage of discount %d", id)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// Upsert inserts d or overwrites the discount with the same code, replacing
// its applicable products. d.ID is set from the stored row. Run it inside a
// transaction to keep the product set consistent.
func (r *DiscountRepository) Upsert(ctx context.Context, d *discount.Discount) error {
	err := r.db.QueryRow(ctx, upsertDiscountSQL,
		d.Code, d.Percentage, string(d.Kind), d.StartDate, d.EndDate, d.UsageLimit,
	).Scan(&d.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert discount %q", d.Code)
	}

	if _, err := r.db.Exec(ctx, clearDiscountProductsSQL, d.ID); err != nil {
		return errors.Wrapf(err, "clear products of discount %q", d.Code)
	}
	if len(d.ApplicableProducts) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, insertDiscountProductsSQL, d.ID, d.ApplicableProducts); err != nil {
		return errors.Wrapf(err, "link products of discount %q", d.Code)
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d    discount.Discount
		kind string
	)
	err := row.Scan(&d.ID, &d.Code, &d.Percentage, &kind, &d.StartDate, &d.EndDate, &d.UsageLimit, &d.ApplicableProducts)
	d.Kind = discount.Kind(kind)
	return d, err
}
