package authz

import (
	"fmt"
	"strings"

	"github.com/mabar/mabar-backend/pkg/enums"
)

// Permission names a capability granted through a role.
type Permission string

const (
	PermViewProfile        Permission = "view_profile"
	PermBookVenues         Permission = "book_venues"
	PermViewBookings       Permission = "view_bookings"
	PermUpdateProfile      Permission = "update_profile"
	PermManageVenues       Permission = "manage_venues"
	PermViewVenueBookings  Permission = "view_venue_bookings"
	PermManageVenueDetails Permission = "manage_venue_details"
	PermManageUsers        Permission = "manage_users"
	PermViewReports        Permission = "view_reports"
	PermManageSystem       Permission = "manage_system"
	PermViewAuditLogs      Permission = "view_audit_logs"
)

var playerPermissions = []Permission{
	PermViewProfile,
	PermBookVenues,
	PermViewBookings,
	PermUpdateProfile,
}

var venueOwnerPermissions = append(append([]Permission{}, playerPermissions...),
	PermManageVenues,
	PermViewVenueBookings,
	PermManageVenueDetails,
)

var adminPermissions = append(append([]Permission{}, venueOwnerPermissions...),
	PermManageUsers,
	PermViewReports,
	PermManageSystem,
	PermViewAuditLogs,
)

var rolePermissions = map[enums.UserRole][]Permission{
	enums.UserRolePlayer:     playerPermissions,
	enums.UserRoleVenueOwner: venueOwnerPermissions,
	enums.UserRoleAdmin:      adminPermissions,
}

// PermissionsFor returns a copy of the permissions granted to role.
func PermissionsFor(role *enums.UserRole) []Permission {
	if role == nil {
		return nil
	}
	perms := rolePermissions[*role]
	return append([]Permission(nil), perms...)
}

// HasPermission reports whether role grants perm. A nil role grants nothing.
func HasPermission(role *enums.UserRole, perm Permission) bool {
	if role == nil {
		return false
	}
	for _, p := range rolePermissions[*role] {
		if p == perm {
			return true
		}
	}
	return false
}

// ParsePermission converts raw input into a known Permission.
func ParsePermission(value string) (Permission, error) {
	normalized := Permission(strings.ToLower(strings.TrimSpace(value)))
	for _, p := range adminPermissions {
		if p == normalized {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown permission %q", value)
}

// AuthorizePermission is Authorize for a single permission.
func AuthorizePermission(role *enums.UserRole, perm Permission) error {
	if role == nil || !role.IsValid() {
		return &PermissionDenial{Permission: perm}
	}
	if HasPermission(role, perm) {
		return nil
	}
	return &PermissionDenial{Permission: perm, Actual: role}
}

// PermissionDenial is the permission counterpart of Denial.
type PermissionDenial struct {
	Permission Permission
	Actual     *enums.UserRole
}

func (d *PermissionDenial) Error() string {
	if d.Actual == nil {
		return fmt.Sprintf("%s: requires permission %s", ErrNoRole, d.Permission)
	}
	return fmt.Sprintf("%s: %s lacks permission %s", ErrForbidden, *d.Actual, d.Permission)
}

// Unwrap exposes the sentinel for errors.Is.
func (d *PermissionDenial) Unwrap() error {
	if d.Actual == nil {
		return ErrNoRole
	}
	return ErrForbidden
}
