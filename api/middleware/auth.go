package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/mabar/mabar-backend/api/responses"
	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/logger"
	"github.com/mabar/mabar-backend/pkg/metrics"
)

type identityResolver interface {
	Resolve(ctx context.Context, header string, mode pkgAuth.Mode) (*pkgAuth.Identity, error)
}

// Auth fails closed: the request proceeds only with a resolved identity.
func Auth(resolver identityResolver, m *metrics.AuthMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"), pkgAuth.ModeRequired)
			if err != nil {
				if errors.Is(err, pkgAuth.ErrAuthentication) {
					logAuthFailure(r, logg, err)
					m.IncAuthAttempt(metrics.OutcomeFailure, string(pkgAuth.KindOf(err)))
					responses.WriteError(r.Context(), nil, w, err)
					return
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, logg)))
		})
	}
}

// OptionalAuth personalizes the request when a valid credential is presented
// and otherwise continues anonymously. It never rejects.
func OptionalAuth(resolver identityResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"), pkgAuth.ModeOptional)
			if err != nil {
				if logg != nil {
					ctx := logg.WithFields(r.Context(), map[string]any{
						"reason": string(pkgAuth.KindOf(err)),
						"path":   r.URL.Path,
					})
					if errors.Is(err, pkgAuth.ErrAuthentication) {
						logg.Debug(ctx, "auth.optional.anonymous")
					} else {
						logg.Error(ctx, "auth.optional.resolve_failed", err)
					}
				}
				identity = nil
			}
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, logg)))
		})
	}
}

func withIdentity(ctx context.Context, identity *pkgAuth.Identity, logg *logger.Logger) context.Context {
	ctx = WithIdentity(ctx, identity)
	if logg != nil {
		ctx = logg.WithUserID(ctx, identity.ID.String())
		if identity.Role != nil {
			ctx = logg.WithActorRole(ctx, identity.Role.String())
		}
	}
	return ctx
}

func logAuthFailure(r *http.Request, logg *logger.Logger, err error) {
	if logg == nil {
		return
	}
	logg.Security(r.Context(), "auth.failed", map[string]any{
		"reason": string(pkgAuth.KindOf(err)),
		"ip":     clientIP(r),
		"path":   r.URL.Path,
	})
}
