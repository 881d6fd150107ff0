package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                  uuid.UUID          `json:"id"`
	Email               string             `json:"email"`
	FirstName           string             `json:"first_name"`
	LastName            string             `json:"last_name"`
	Role                *enums.UserRole    `json:"role"`
	Provider            enums.AuthProvider `json:"auth_provider"`
	HasPassword         bool               `json:"has_password"`
	IsActive            bool               `json:"is_active"`
	OnboardingCompleted bool               `json:"onboarding_completed"`
	LastLoginAt         *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
}

// CreateUserDTO holds the data required by the stores to persist a new user.
type CreateUserDTO struct {
	Email               string
	PasswordHash        *string
	FirstName           string
	LastName            string
	Provider            enums.AuthProvider
	GoogleID            *string
	Role                *enums.UserRole
	OnboardingCompleted bool
	IsActive            *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:                  u.ID,
		Email:               u.Email,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		Role:                u.Role,
		Provider:            u.Provider,
		HasPassword:         u.HasPassword(),
		IsActive:            u.IsActive,
		OnboardingCompleted: u.OnboardingCompleted,
		LastLoginAt:         u.LastLoginAt,
		CreatedAt:           u.CreatedAt,
	}
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate enforces the invariants every backend shares.
func (c CreateUserDTO) Validate() error {
	if NormalizeEmail(c.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if c.Provider != "" && !c.Provider.IsValid() {
		return fmt.Errorf("invalid auth provider %q", c.Provider)
	}
	if c.Role != nil {
		if !c.Role.IsValid() {
			return fmt.Errorf("invalid user role %q", *c.Role)
		}
		if *c.Role == enums.UserRoleAdmin && (c.PasswordHash == nil || *c.PasswordHash == "") {
			return ErrAdminRequiresPassword
		}
	}
	return nil
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}
	provider := c.Provider
	if provider == "" {
		provider = enums.AuthProviderLocal
	}

	return &models.User{
		Email:               NormalizeEmail(c.Email),
		PasswordHash:        c.PasswordHash,
		FirstName:           strings.TrimSpace(c.FirstName),
		LastName:            strings.TrimSpace(c.LastName),
		Provider:            provider,
		GoogleID:            c.GoogleID,
		Role:                c.Role,
		IsActive:            isActive,
		OnboardingCompleted: c.OnboardingCompleted,
	}
}
