package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mabar/mabar-backend/api/middleware"
	"github.com/mabar/mabar-backend/api/responses"
	"github.com/mabar/mabar-backend/pkg/authz"
	pkgerrors "github.com/mabar/mabar-backend/pkg/errors"
	"github.com/mabar/mabar-backend/pkg/logger"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// ScopedPing answers for a role-gated group and echoes the caller's role.
func ScopedPing(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": scope, "status": "ok"}
		if role := middleware.RoleFromContext(r.Context()); role != nil {
			payload["role"] = role.String()
		}
		responses.WriteSuccess(w, payload)
	}
}

// AdminPermissionCheck reports whether the caller's role grants {name}.
func AdminPermissionCheck(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		perm, err := authz.ParsePermission(chi.URLParam(r, "name"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown permission"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"permission": perm,
			"granted":    authz.HasPermission(middleware.RoleFromContext(r.Context()), perm),
		})
	}
}
