package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/enums"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the authenticated caller, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *pkgAuth.Identity {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxIdentity).(*pkgAuth.Identity); ok {
		return v
	}
	return nil
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	if identity := IdentityFromContext(ctx); identity != nil {
		return identity.ID
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) *enums.UserRole {
	if identity := IdentityFromContext(ctx); identity != nil {
		return identity.Role
	}
	return nil
}

// WithIdentity injects the authenticated identity into the context.
func WithIdentity(ctx context.Context, identity *pkgAuth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}
