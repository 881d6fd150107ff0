// Package authz decides whether an identity's role satisfies a requirement.
// It is the only place that compares roles.
package authz

import (
	"errors"
	"fmt"

	"github.com/mabar/mabar-backend/pkg/enums"
)

var (
	// ErrNoRole means the caller has not selected a role yet.
	ErrNoRole = errors.New("no role assigned")
	// ErrForbidden means the caller's role does not satisfy the requirement.
	ErrForbidden = errors.New("insufficient role")
)

var roleRank = map[enums.UserRole]int{
	enums.UserRolePlayer:     1,
	enums.UserRoleVenueOwner: 2,
	enums.UserRoleAdmin:      3,
}

// Rank orders roles by privilege. Unknown roles rank 0.
func Rank(role enums.UserRole) int {
	return roleRank[role]
}

// HasRoleOrHigher reports whether role ranks at least minimum.
func HasRoleOrHigher(role *enums.UserRole, minimum enums.UserRole) bool {
	if role == nil || Rank(*role) == 0 {
		return false
	}
	return Rank(*role) >= Rank(minimum)
}

type matchKind int

const (
	matchExact matchKind = iota
	matchAtLeast
)

// Requirement is a role constraint built with RequireRole or RequireMinRole.
type Requirement struct {
	role enums.UserRole
	kind matchKind
}

// RequireRole matches exactly one role; higher roles are not admitted.
func RequireRole(role enums.UserRole) Requirement {
	return Requirement{role: role, kind: matchExact}
}

// RequireMinRole admits role and every role ranked above it.
func RequireMinRole(role enums.UserRole) Requirement {
	return Requirement{role: role, kind: matchAtLeast}
}

// Role returns the role named by the requirement.
func (r Requirement) Role() enums.UserRole {
	return r.role
}

func (r Requirement) String() string {
	if r.kind == matchAtLeast {
		return fmt.Sprintf(">=%s", r.role)
	}
	return r.role.String()
}

// Denial describes why Authorize refused. It matches ErrNoRole or ErrForbidden.
type Denial struct {
	Required Requirement
	Actual   *enums.UserRole
}

func (d *Denial) Error() string {
	if d.Actual == nil {
		return fmt.Sprintf("%s: requires %s", ErrNoRole, d.Required)
	}
	return fmt.Sprintf("%s: %s does not satisfy %s", ErrForbidden, *d.Actual, d.Required)
}

// Unwrap exposes the sentinel for errors.Is.
func (d *Denial) Unwrap() error {
	if d.Actual == nil {
		return ErrNoRole
	}
	return ErrForbidden
}

// Authorize returns nil when role satisfies req and a *Denial otherwise.
func Authorize(role *enums.UserRole, req Requirement) error {
	if role == nil || !role.IsValid() {
		return &Denial{Required: req}
	}
	switch req.kind {
	case matchAtLeast:
		if HasRoleOrHigher(role, req.role) {
			return nil
		}
	default:
		if *role == req.role {
			return nil
		}
	}
	return &Denial{Required: req, Actual: role}
}
