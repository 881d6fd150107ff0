package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
)

type stubLookup struct {
	users    map[uuid.UUID]*models.User
	err      error
	calls    int
	deadline bool
}

func (s *stubLookup) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.calls++
	_, s.deadline = ctx.Deadline()
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func newTestResolver(t *testing.T, users UserLookup) (*Resolver, *TokenService) {
	t.Helper()
	tokens, _ := newTestTokenService(t, "7d")
	resolver, err := NewResolver(ResolverParams{Tokens: tokens, Users: users, LookupTimeout: time.Second})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver, tokens
}

func issueFor(t *testing.T, tokens *TokenService, id uuid.UUID, role *enums.UserRole) string {
	t.Helper()
	token, err := tokens.Issue(Identity{ID: id, Email: "user@example.com", Role: role})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func TestResolveNoCredential(t *testing.T) {
	resolver, _ := newTestResolver(t, nil)
	ctx := context.Background()

	for _, header := range []string{"", "   ", "Basic dXNlcjpwYXNz", "Bearer", "Bearer    ", "Token abc"} {
		identity, err := resolver.Resolve(ctx, header, ModeOptional)
		if err != nil || identity != nil {
			t.Fatalf("optional %q: expected anonymous, got identity=%v err=%v", header, identity, err)
		}
		if _, err := resolver.Resolve(ctx, header, ModeRequired); KindOf(err) != FailureMissingCredentials {
			t.Fatalf("required %q: expected missing credentials, got %v", header, err)
		}
	}
}

func TestResolveInvalidTokenFailsInBothModes(t *testing.T) {
	resolver, _ := newTestResolver(t, nil)

	for _, mode := range []Mode{ModeOptional, ModeRequired} {
		_, err := resolver.Resolve(context.Background(), "Bearer not.a.token", mode)
		if KindOf(err) != FailureMalformed {
			t.Fatalf("mode %d: expected malformed, got %v", mode, err)
		}
	}
}

func TestResolvePureClaims(t *testing.T) {
	resolver, tokens := newTestResolver(t, nil)
	id := uuid.New()
	token := issueFor(t, tokens, id, enums.UserRolePlayer.Ptr())

	identity, err := resolver.Resolve(context.Background(), "bearer "+token, ModeRequired)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.ID != id || identity.Role == nil || *identity.Role != enums.UserRolePlayer {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestResolveUsesLiveRecord(t *testing.T) {
	id := uuid.New()
	lookup := &stubLookup{users: map[uuid.UUID]*models.User{
		id: {ID: id, Email: "live@example.com", Role: enums.UserRoleVenueOwner.Ptr(), IsActive: true},
	}}
	resolver, tokens := newTestResolver(t, lookup)
	token := issueFor(t, tokens, id, nil)

	identity, err := resolver.Resolve(context.Background(), "Bearer "+token, ModeRequired)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.Email != "live@example.com" {
		t.Fatalf("expected live email, got %q", identity.Email)
	}
	if identity.Role == nil || *identity.Role != enums.UserRoleVenueOwner {
		t.Fatalf("expected live role, got %v", identity.Role)
	}
	if lookup.calls != 1 || !lookup.deadline {
		t.Fatalf("expected one bounded lookup, calls=%d deadline=%v", lookup.calls, lookup.deadline)
	}
}

func TestResolveDeactivatedAndMissingUsers(t *testing.T) {
	inactive := uuid.New()
	lookup := &stubLookup{users: map[uuid.UUID]*models.User{
		inactive: {ID: inactive, IsActive: false},
	}}
	resolver, tokens := newTestResolver(t, lookup)

	_, err := resolver.Resolve(context.Background(), "Bearer "+issueFor(t, tokens, inactive, nil), ModeOptional)
	if KindOf(err) != FailureUserDeactivated {
		t.Fatalf("expected deactivated, got %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "Bearer "+issueFor(t, tokens, uuid.New(), nil), ModeRequired)
	if KindOf(err) != FailureUserNotFound {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestResolveStoreErrorIsNotAuthFailure(t *testing.T) {
	lookup := &stubLookup{err: errors.New("connection refused")}
	resolver, tokens := newTestResolver(t, lookup)

	_, err := resolver.Resolve(context.Background(), "Bearer "+issueFor(t, tokens, uuid.New(), nil), ModeRequired)
	if err == nil {
		t.Fatal("expected store error")
	}
	if errors.Is(err, ErrAuthentication) {
		t.Fatalf("store outage must not look like an auth failure: %v", err)
	}
}

func TestNewResolverRequiresTokens(t *testing.T) {
	if _, err := NewResolver(ResolverParams{}); err == nil {
		t.Fatal("expected error without token service")
	}
}
