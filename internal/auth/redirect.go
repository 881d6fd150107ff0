package auth

import (
	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
)

const (
	RedirectRoleSelection = "/onboarding/role"
	RedirectOnboarding    = "/onboarding"
	RedirectAdmin         = "/admin"
	RedirectDashboard     = "/dashboard"
)

// RedirectFor picks the client destination after a successful authentication.
func RedirectFor(user *models.User) string {
	switch {
	case user == nil || user.Role == nil:
		return RedirectRoleSelection
	case !user.OnboardingCompleted:
		return RedirectOnboarding
	case *user.Role == enums.UserRoleAdmin:
		return RedirectAdmin
	default:
		return RedirectDashboard
	}
}
