package user

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by repositories when a user does not exist.
var ErrNotFound = errors.New("user not found")

// User is a registered customer.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	FirstName    string
	LastName     string
	PhoneNumber  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NotFoundError indicates no user has the given id.
type NotFoundError struct {
	UserID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user not found with id: %d", e.UserID)
}

// Is lets errors.Is(err, ErrNotFound) match typed not-found errors.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Repository defines persistence operations for users.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	UpdateProfile(ctx context.Context, u *User) error
}
