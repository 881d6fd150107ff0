package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mabar/mabar-backend/internal/users"
	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/authz"
	"github.com/mabar/mabar-backend/pkg/config"
	"github.com/mabar/mabar-backend/pkg/db"
	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
	pkgerrors "github.com/mabar/mabar-backend/pkg/errors"
	"github.com/mabar/mabar-backend/pkg/metrics"
	"github.com/mabar/mabar-backend/pkg/oauth"
	"github.com/mabar/mabar-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Login failure reasons recorded in metrics. They never reach the client.
const (
	reasonUnknownEmail = "unknown_email"
	reasonBadPassword  = "bad_password"
	reasonNoPassword   = "no_password"
	reasonInvalidHash  = "invalid_hash"
	reasonDeactivated  = "deactivated"
	reasonNotAdmin     = "not_admin"
	reasonOAuth        = "oauth_rejected"
)

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	AdminLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Me(ctx context.Context, identity pkgAuth.Identity) (*MeResponse, error)
	Status(ctx context.Context, identity *pkgAuth.Identity) *StatusResponse
	SelectRole(ctx context.Context, identity pkgAuth.Identity, req SelectRoleRequest) (*AuthResponse, error)
	ChangePassword(ctx context.Context, identity pkgAuth.Identity, req ChangePasswordRequest) error
	OAuthLogin(ctx context.Context, profile oauth.Profile) (*AuthResponse, error)
	SeedAdmin(ctx context.Context, admin config.AdminConfig) (bool, error)
}

type passwordHasher interface {
	ValidateStrength(password string) error
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

type tokenIssuer interface {
	Issue(identity pkgAuth.Identity) (string, error)
}

type attemptRecorder interface {
	IncAuthAttempt(outcome, reason string)
}

type service struct {
	users     users.Store
	passwords passwordHasher
	tokens    tokenIssuer
	attempts  attemptRecorder
	validate  *validator.Validate
	now       func() time.Time
	// decoy is verified when the email is unknown so both paths cost one argon2 run.
	decoy string
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Users     users.Store
	Passwords passwordHasher
	Tokens    tokenIssuer
	// Attempts is optional.
	Attempts attemptRecorder
	Clock    func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Passwords == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	var attempts attemptRecorder = (*metrics.AuthMetrics)(nil)
	if params.Attempts != nil {
		attempts = params.Attempts
	}

	decoy, err := security.HashPassword("decoy-password-never-matches", decoyParams(params.Passwords))
	if err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}

	return &service{
		users:     params.Users,
		passwords: params.Passwords,
		tokens:    params.Tokens,
		attempts:  attempts,
		validate:  validator.New(),
		now:       clock,
		decoy:     decoy,
	}, nil
}

func decoyParams(h passwordHasher) security.ArgonParams {
	if p, ok := h.(interface{ Policy() security.Policy }); ok {
		return p.Policy().Argon
	}
	return security.DevelopmentPolicy().Argon
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := users.NormalizeEmail(req.Email)
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email address")
	}
	if err := s.passwords.ValidateStrength(req.Password); err != nil {
		return nil, weakPasswordError(err)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	hash, err := s.passwords.Hash(ctx, req.Password)
	if err != nil {
		if errors.Is(err, security.ErrWeakPassword) {
			return nil, weakPasswordError(err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: &hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Provider:     enums.AuthProviderLocal,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	resp, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	resp.IsNewUser = true
	return resp, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.recordLogin(ctx, user); err != nil {
		return nil, err
	}
	s.attempts.IncAuthAttempt(metrics.OutcomeSuccess, "")
	return s.issue(user)
}

func (s *service) AdminLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if authz.Authorize(user.Role, authz.RequireRole(enums.UserRoleAdmin)) != nil {
		return nil, s.loginFailure(reasonNotAdmin)
	}
	if err := s.recordLogin(ctx, user); err != nil {
		return nil, err
	}
	s.attempts.IncAuthAttempt(metrics.OutcomeSuccess, "")
	return s.issue(user)
}

func (s *service) Me(ctx context.Context, identity pkgAuth.Identity) (*MeResponse, error) {
	user, err := s.loadActive(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	return &MeResponse{
		User:        users.FromModel(user),
		Permissions: authz.PermissionsFor(user.Role),
		RedirectTo:  RedirectFor(user),
	}, nil
}

func (s *service) Status(ctx context.Context, identity *pkgAuth.Identity) *StatusResponse {
	if identity == nil {
		return &StatusResponse{}
	}
	user, err := s.users.FindByID(ctx, identity.ID)
	if err != nil || !user.IsActive {
		return &StatusResponse{}
	}
	return &StatusResponse{IsAuthenticated: true, User: users.FromModel(user)}
}

func (s *service) SelectRole(ctx context.Context, identity pkgAuth.Identity, req SelectRoleRequest) (*AuthResponse, error) {
	role, err := enums.ParseUserRole(req.Role)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if role == enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role cannot be self-assigned")
	}

	user, err := s.loadActive(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if user.Role != nil && *user.Role == enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role cannot be changed")
	}

	updated, err := s.users.UpdateRole(ctx, user.ID, role)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update role")
	}
	return s.issue(updated)
}

func (s *service) ChangePassword(ctx context.Context, identity pkgAuth.Identity, req ChangePasswordRequest) error {
	user, err := s.loadActive(ctx, identity.ID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return pkgerrors.New(pkgerrors.CodeValidation, "account has no password, sign in with google")
	}

	valid, err := s.passwords.Verify(ctx, req.CurrentPassword, *user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrInvalidHash) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if req.NewPassword == req.CurrentPassword {
		return pkgerrors.New(pkgerrors.CodeValidation, "new password must differ from the current password")
	}

	hash, err := s.passwords.Hash(ctx, req.NewPassword)
	if err != nil {
		if errors.Is(err, security.ErrWeakPassword) {
			return weakPasswordError(err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	return nil
}

func (s *service) OAuthLogin(ctx context.Context, profile oauth.Profile) (*AuthResponse, error) {
	email := users.NormalizeEmail(profile.Email)
	if profile.Subject == "" || email == "" || !profile.EmailVerified {
		return nil, s.loginFailure(reasonOAuth)
	}

	user, err := s.users.FindByGoogleID(ctx, profile.Subject)
	created := false
	switch {
	case err == nil:
	case db.IsNotFound(err):
		user, created, err = s.linkOrCreateGoogleUser(ctx, email, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup google account")
	}

	if !user.IsActive {
		return nil, s.loginFailure(reasonDeactivated)
	}
	if err := s.recordLogin(ctx, user); err != nil {
		return nil, err
	}
	s.attempts.IncAuthAttempt(metrics.OutcomeSuccess, "")

	resp, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	resp.IsNewUser = created
	return resp, nil
}

func (s *service) linkOrCreateGoogleUser(ctx context.Context, email string, profile oauth.Profile) (*models.User, bool, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		if existing.GoogleID != nil && *existing.GoogleID != profile.Subject {
			return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "email is linked to another google account")
		}
		if err := s.users.LinkGoogle(ctx, existing.ID, profile.Subject); err != nil {
			if errors.Is(err, users.ErrGoogleIDTaken) {
				return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "google account already linked")
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link google account")
		}
		subject := profile.Subject
		existing.GoogleID = &subject
		return existing, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user email")
	}

	subject := profile.Subject
	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:     email,
		FirstName: profile.GivenName,
		LastName:  profile.FamilyName,
		Provider:  enums.AuthProviderGoogle,
		GoogleID:  &subject,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) || errors.Is(err, users.ErrGoogleIDTaken) {
			return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "account already exists")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create google user")
	}
	return user, true, nil
}

// SeedAdmin creates the bootstrap admin when it does not exist yet. It reports
// whether a user was created. An empty email or password disables seeding.
func (s *service) SeedAdmin(ctx context.Context, admin config.AdminConfig) (bool, error) {
	email := users.NormalizeEmail(admin.Email)
	if email == "" || admin.Password == "" {
		return false, nil
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		if existing.Role != nil && *existing.Role == enums.UserRoleAdmin {
			return false, nil
		}
		return false, pkgerrors.New(pkgerrors.CodeConflict, "admin email belongs to a non-admin account")
	}
	if !db.IsNotFound(err) {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup admin")
	}

	hash, err := s.passwords.Hash(ctx, admin.Password)
	if err != nil {
		if errors.Is(err, security.ErrWeakPassword) {
			return false, weakPasswordError(err)
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash admin password")
	}

	if _, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:               email,
		PasswordHash:        &hash,
		FirstName:           trimmedOr(admin.FirstName, "Admin"),
		LastName:            strings.TrimSpace(admin.LastName),
		Provider:            enums.AuthProviderLocal,
		Role:                enums.UserRoleAdmin.Ptr(),
		OnboardingCompleted: true,
	}); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			// Lost a race with another instance seeding the same account.
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create admin")
	}
	return true, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := users.NormalizeEmail(email)
	if input == "" || password == "" {
		return nil, s.loginFailure(reasonUnknownEmail)
	}

	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if db.IsNotFound(err) {
			// Burn the same argon2 cost as a real mismatch.
			_, _ = s.passwords.Verify(ctx, password, s.decoy)
			return nil, s.loginFailure(reasonUnknownEmail)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	if !user.HasPassword() {
		_, _ = s.passwords.Verify(ctx, password, s.decoy)
		return nil, s.loginFailure(reasonNoPassword)
	}

	valid, err := s.passwords.Verify(ctx, password, *user.PasswordHash)
	if err != nil {
		if errors.Is(err, security.ErrInvalidHash) {
			return nil, s.loginFailure(reasonInvalidHash)
		}
		if ctx.Err() != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify password")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, s.loginFailure(reasonBadPassword)
	}
	if !user.IsActive {
		return nil, s.loginFailure(reasonDeactivated)
	}
	return user, nil
}

func (s *service) loginFailure(reason string) error {
	s.attempts.IncAuthAttempt(metrics.OutcomeFailure, reason)
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage).
		WithDetails(map[string]any{"reason": reason})
}

func (s *service) loadActive(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) recordLogin(ctx context.Context, user *models.User) error {
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return nil
}

func (s *service) issue(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(pkgAuth.Identity{ID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue token")
	}
	return &AuthResponse{
		Token:      token,
		User:       users.FromModel(user),
		RedirectTo: RedirectFor(user),
	}, nil
}

// weakPasswordError keeps the *security.PolicyError in the chain so the
// response layer can describe the violation.
func weakPasswordError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "password does not meet policy")
}

func trimmedOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
