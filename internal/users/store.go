package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
)

var (
	// ErrNotFound aliases gorm's sentinel so every backend reports absence the same way.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrGoogleIDTaken is returned when a google account is already linked elsewhere.
	ErrGoogleIDTaken = errors.New("google account already linked")
	// ErrAdminRequiresPassword rejects admin accounts without a local password.
	ErrAdminRequiresPassword = errors.New("admin accounts require a password")
)

// Store is the user persistence surface shared by the gorm, memory and cached backends.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	// UpdateRole sets the role, marks onboarding complete and returns the updated user.
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	LinkGoogle(ctx context.Context, id uuid.UUID, googleID string) error
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.PasswordHash != nil {
		out.PasswordHash = stringPtr(*u.PasswordHash)
	}
	if u.GoogleID != nil {
		out.GoogleID = stringPtr(*u.GoogleID)
	}
	if u.Role != nil {
		out.Role = u.Role.Ptr()
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		out.LastLoginAt = &at
	}
	return &out
}

func stringPtr(s string) *string {
	return &s
}
