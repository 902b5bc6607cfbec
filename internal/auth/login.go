package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/digigoods/internal/domain/user"
)

// dummyHash is compared against when the username is unknown, so both
// failure paths cost one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3sD0bF0F8cSBy2L8QSn6N4e"

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
}

// Authenticator exchanges credentials for tokens.
type Authenticator struct {
	users  user.Repository
	tokens *Tokens
}

// NewAuthenticator returns an Authenticator checking credentials against
// users.
func NewAuthenticator(users user.Repository, tokens *Tokens) *Authenticator {
	return &Authenticator{users: users, tokens: tokens}
}

// Login verifies username and password and issues a token. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := a.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, user.ErrNotFound):
		ComparePassword(dummyHash, password)
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, errors.Wrap(err, "get user")
	}

	if !ComparePassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := a.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, UserID: u.ID}, nil
}
