package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mabar/mabar-backend/pkg/config"
)

// MaxTokenAge bounds how long after issuance a token is honored, whatever its exp says.
const MaxTokenAge = 7 * 24 * time.Hour

var jwtSigningMethod = jwt.SigningMethodHS256

// Clock returns the current time.
type Clock func() time.Time

// TokenService issues and validates HS256 session tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenService struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	maxAge   time.Duration
	now      Clock
}

// NewTokenService builds a token service from config. A nil clock uses time.Now.
func NewTokenService(cfg config.JWTConfig, clock Clock) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	lifetime, err := cfg.TokenLifetime()
	if err != nil {
		return nil, err
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = config.DefaultIssuer
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 || maxAge > MaxTokenAge {
		maxAge = MaxTokenAge
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenService{
		secret:   []byte(cfg.Secret),
		issuer:   issuer,
		lifetime: lifetime,
		maxAge:   maxAge,
		now:      clock,
	}, nil
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for identity, valid from now until now+lifetime.
func (s *TokenService) Issue(identity Identity) (string, error) {
	if identity.ID == uuid.Nil {
		return "", fmt.Errorf("identity id is required")
	}
	if identity.Role != nil && !identity.Role.IsValid() {
		return "", fmt.Errorf("invalid user role %q", *identity.Role)
	}

	now := s.now()
	claims := Claims{
		UserID: identity.ID,
		Email:  identity.Email,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and returns the claims. Failures are
// *AuthError with kind Malformed, BadSignature or Expired.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, newAuthError(FailureMalformed, errors.New("empty token"))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	// The parser already checked exp; repeat it against our clock so the
	// classification does not depend on library internals.
	now := s.now()
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return nil, newAuthError(FailureExpired, jwt.ErrTokenExpired)
	}
	if claims.IssuedAt == nil {
		return nil, newAuthError(FailureMalformed, errors.New("missing iat"))
	}
	if now.Sub(claims.IssuedAt.Time) > s.maxAge {
		return nil, newAuthError(FailureExpired, fmt.Errorf("token older than %s", s.maxAge))
	}
	if claims.UserID == uuid.Nil {
		return nil, newAuthError(FailureMalformed, errors.New("missing subject id"))
	}
	if claims.Role != nil && !claims.Role.IsValid() {
		return nil, newAuthError(FailureMalformed, fmt.Errorf("unknown role %q", *claims.Role))
	}
	return claims, nil
}

func classifyParseError(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newAuthError(FailureBadSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return newAuthError(FailureMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newAuthError(FailureExpired, err)
	}
	return newAuthError(FailureMalformed, err)
}
