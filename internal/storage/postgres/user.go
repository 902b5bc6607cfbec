package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/digigoods/internal/domain/user"
)

const (
	userColumns = `id, username, password_hash, email, first_name, last_name, phone_number, created_at, updated_at`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByUsernameSQL = `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	updateProfileSQL = `UPDATE users
		SET email = $2, first_name = $3, last_name = $4, phone_number = $5, updated_at = $6
		WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (username, password_hash, email, first_name, last_name, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone_number = EXCLUDED.phone_number,
			updated_at = now()
		RETURNING id, created_at, updated_at`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db DBTX
}

// NewUserRepository returns a UserRepository that uses db.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, getUserByUsernameSQL, username)
}

func (r *UserRepository) getOne(ctx context.Context, sql string, arg any) (*user.User, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, userExistsSQL, id).Scan(&ok); err != nil {
		return false, errors.Wrapf(err, "check user %d", id)
	}
	return ok, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *user.User) error {
	tag, err := r.db.Exec(ctx, updateProfileSQL,
		u.ID, u.Email, u.FirstName, u.LastName, u.PhoneNumber, u.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update profile of user %d", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Upsert inserts u or overwrites the user with the same username. u.ID and
// the timestamps are set from the stored row.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	err := r.db.QueryRow(ctx, upsertUserSQL,
		u.Username, u.PasswordHash, u.Email, u.FirstName, u.LastName, u.PhoneNumber,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "upsert user %q", u.Username)
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash,
		&u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}
