package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mabar/mabar-backend/pkg/db"
	"github.com/mabar/mabar-backend/pkg/db/models"
)

// Mode selects whether a missing credential is an error.
type Mode int

const (
	// ModeOptional yields a nil identity when no credential is presented.
	ModeOptional Mode = iota
	// ModeRequired fails with FailureMissingCredentials instead.
	ModeRequired
)

const bearerScheme = "Bearer"

// UserLookup loads the live user record behind a token.
type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ResolverParams bundles the resolver dependencies. A nil Users makes the
// resolver trust token claims without consulting the store.
type ResolverParams struct {
	Tokens        *TokenService
	Users         UserLookup
	LookupTimeout time.Duration
}

// Resolver turns an Authorization header into an Identity.
type Resolver struct {
	tokens  *TokenService
	users   UserLookup
	timeout time.Duration
}

// NewResolver validates params and builds a resolver.
func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Tokens == nil {
		return nil, fmt.Errorf("token service required")
	}
	return &Resolver{
		tokens:  params.Tokens,
		users:   params.Users,
		timeout: params.LookupTimeout,
	}, nil
}

// Resolve authenticates the raw Authorization header value. A missing header,
// a non-bearer scheme or an empty token counts as no credential: (nil, nil) in
// optional mode and FailureMissingCredentials in required mode. A credential
// that is present but invalid fails in both modes.
func (r *Resolver) Resolve(ctx context.Context, header string, mode Mode) (*Identity, error) {
	token, ok := bearerToken(header)
	if !ok {
		if mode == ModeOptional {
			return nil, nil
		}
		return nil, newAuthError(FailureMissingCredentials, nil)
	}

	claims, err := r.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	identity := claims.Identity()
	if r.users == nil {
		return &identity, nil
	}

	lookupCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	user, err := r.users.FindByID(lookupCtx, identity.ID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, newAuthError(FailureUserNotFound, err)
		}
		return nil, fmt.Errorf("load user %s: %w", identity.ID, err)
	}
	if !user.IsActive {
		return nil, newAuthError(FailureUserDeactivated, nil)
	}

	// The stored role wins over the one frozen into the token.
	return &Identity{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
