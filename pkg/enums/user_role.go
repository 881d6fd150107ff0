package enums

import (
	"fmt"
	"strings"
)

// UserRole is the account-level role selected after registration.
type UserRole string

const (
	UserRolePlayer     UserRole = "player"
	UserRoleVenueOwner UserRole = "venue_owner"
	UserRoleAdmin      UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRolePlayer,
	UserRoleVenueOwner,
	UserRoleAdmin,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to a copy of r.
func (r UserRole) Ptr() *UserRole {
	return &r
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validUserRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
