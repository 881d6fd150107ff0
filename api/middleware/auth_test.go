package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/config"
	"github.com/mabar/mabar-backend/pkg/enums"
	"github.com/mabar/mabar-backend/pkg/metrics"
)

func newTestResolver(t *testing.T) (*pkgAuth.Resolver, *pkgAuth.TokenService) {
	t.Helper()
	tokens, err := pkgAuth.NewTokenService(config.JWTConfig{
		Secret:   "middleware-test-secret-long-enough",
		Lifetime: "1h",
	}, nil)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	resolver, err := pkgAuth.NewResolver(pkgAuth.ResolverParams{Tokens: tokens})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return resolver, tokens
}

func mintTestToken(t *testing.T, tokens *pkgAuth.TokenService, role *enums.UserRole) (string, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	token, err := tokens.Issue(pkgAuth.Identity{ID: id, Email: "user@example.com", Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token, id
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	resolver, _ := newTestResolver(t)
	handler := Auth(resolver, nil, nil)(okHandler())

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", header, resp.Code)
		}
	}
}

func TestAuthRejectsInvalidTokenAndRecordsReason(t *testing.T) {
	resolver, _ := newTestResolver(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewAuthMetrics(reg)
	handler := Auth(resolver, m, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	count, err := testutil.GatherAndCount(reg, "auth_attempts_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one auth_attempts_total series, got %d", count)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	resolver, tokens := newTestResolver(t)
	token, id := mintTestToken(t, tokens, enums.UserRoleVenueOwner.Ptr())

	var captured struct {
		user uuid.UUID
		role *enums.UserRole
	}
	handler := Auth(resolver, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != id {
		t.Fatalf("expected user %s got %s", id, captured.user)
	}
	if captured.role == nil || *captured.role != enums.UserRoleVenueOwner {
		t.Fatalf("expected venue_owner role got %v", captured.role)
	}
}

type failingResolver struct{ err error }

func (f failingResolver) Resolve(context.Context, string, pkgAuth.Mode) (*pkgAuth.Identity, error) {
	return nil, f.err
}

func TestAuthStoreFailureIsInternal(t *testing.T) {
	handler := Auth(failingResolver{err: errors.New("db down")}, nil, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x.y.z")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	resolver, tokens := newTestResolver(t)
	token, id := mintTestToken(t, tokens, nil)

	var seen *pkgAuth.Identity
	handler := OptionalAuth(resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		header string
		want   uuid.UUID
	}{
		{"", uuid.Nil},
		{"Bearer garbage", uuid.Nil},
		{"Bearer " + token, id},
	}
	for _, tc := range cases {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("header %q: expected 200 got %d", tc.header, resp.Code)
		}
		got := uuid.Nil
		if seen != nil {
			got = seen.ID
		}
		if got != tc.want {
			t.Fatalf("header %q: expected identity %s got %s", tc.header, tc.want, got)
		}
	}

	handler = OptionalAuth(failingResolver{err: errors.New("db down")}, nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected store failure to degrade to anonymous, got %d", resp.Code)
	}
}
