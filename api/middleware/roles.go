package middleware

import (
	"net/http"

	"github.com/mabar/mabar-backend/api/responses"
	"github.com/mabar/mabar-backend/pkg/authz"
	"github.com/mabar/mabar-backend/pkg/enums"
	"github.com/mabar/mabar-backend/pkg/logger"
)

// RequireRole admits exactly role. It must run after Auth.
func RequireRole(role enums.UserRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return require(authz.RequireRole(role), logg)
}

// RequireMinRole admits role and every role ranked above it.
func RequireMinRole(role enums.UserRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return require(authz.RequireMinRole(role), logg)
}

func require(req authz.Requirement, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authz.Authorize(RoleFromContext(r.Context()), req); err != nil {
				logDenied(r, logg, req.String())
				responses.WriteError(r.Context(), nil, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits callers whose role grants perm.
func RequirePermission(perm authz.Permission, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authz.AuthorizePermission(RoleFromContext(r.Context()), perm); err != nil {
				logDenied(r, logg, string(perm))
				responses.WriteError(r.Context(), nil, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func logDenied(r *http.Request, logg *logger.Logger, requirement string) {
	if logg == nil {
		return
	}
	logg.Security(r.Context(), "authz.denied", map[string]any{
		"requirement": requirement,
		"ip":          clientIP(r),
		"path":        r.URL.Path,
	})
}
