package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// Profile is the public view of a user.
type Profile struct {
	ID          int64
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileUpdate carries the editable profile fields. Empty values clear the
// stored field.
type ProfileUpdate struct {
	Email       string `validate:"omitempty,email"`
	FirstName   string `validate:"max=50"`
	LastName    string `validate:"max=50"`
	PhoneNumber string `validate:"max=20"`
}

// ValidationError lists the fields of a ProfileUpdate that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "invalid profile update"
}

var fieldMessages = map[string]string{
	"Email":       "Email should be valid",
	"FirstName":   "First name should not exceed 50 characters",
	"LastName":    "Last name should not exceed 50 characters",
	"PhoneNumber": "Phone number should not exceed 20 characters",
}

// ProfileService reads and edits user profiles.
type ProfileService struct {
	users    Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewProfileService creates a ProfileService backed by the given Repository.
func NewProfileService(users Repository) *ProfileService {
	return &ProfileService{
		users:    users,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// GetProfile returns the profile of user id or *NotFoundError.
func (s *ProfileService) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProfile(u), nil
}

// UpdateProfile validates upd, copies it onto user id and returns the stored
// profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*Profile, error) {
	if err := s.validate.Struct(upd); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, errors.Wrap(err, "validate profile")
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessages[fe.Field()]
		}
		return nil, &ValidationError{Fields: fields}
	}

	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Email = upd.Email
	u.FirstName = upd.FirstName
	u.LastName = upd.LastName
	u.PhoneNumber = upd.PhoneNumber
	u.UpdatedAt = s.now()

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{UserID: id}
		}
		return nil, errors.Wrap(err, "update profile")
	}
	return toProfile(u), nil
}

// Exists reports whether user id exists.
func (s *ProfileService) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return false, errors.Wrap(err, "check user")
	}
	return ok, nil
}

func (s *ProfileService) load(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{UserID: id}
		}
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

func toProfile(u *User) *Profile {
	return &Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
