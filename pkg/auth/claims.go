package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mabar/mabar-backend/pkg/enums"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID    uuid.UUID
	Email string
	Role  *enums.UserRole
}

// HasRole reports whether a role has been selected.
func (i Identity) HasRole() bool {
	return i.Role != nil && i.Role.IsValid()
}

// Claims represents the typed JWT issued to clients.
type Claims struct {
	UserID uuid.UUID       `json:"id"`
	Email  string          `json:"email"`
	Role   *enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity projects the claims onto an Identity.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.UserID, Email: c.Email, Role: c.Role}
}
