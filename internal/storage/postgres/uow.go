package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/digigoods/internal/domain/checkout"
)

var _ checkout.UnitOfWork = (*UnitOfWork)(nil)

// NewRepositories returns repositories bound to conn.
func NewRepositories(conn DBTX) checkout.Repositories {
	return checkout.Repositories{
		Users:     NewUserRepository(conn),
		Products:  NewProductRepository(conn),
		Discounts: NewDiscountRepository(conn),
		Orders:    NewOrderRepository(conn),
	}
}

// UnitOfWork runs callbacks inside a database transaction.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork returns a UnitOfWork that opens transactions on pool.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// Do runs fn with repositories bound to a fresh transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos checkout.Repositories) error) error {
	return InTx(ctx, u.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

// InTx runs fn inside a transaction started on pool.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) (rerr error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed.
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) && rerr == nil {
			rerr = errors.Wrap(err, "rollback")
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}
