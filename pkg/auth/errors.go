package auth

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a request could not be authenticated.
type FailureKind string

const (
	FailureMissingCredentials FailureKind = "missing_credentials"
	FailureMalformed          FailureKind = "malformed"
	FailureBadSignature       FailureKind = "bad_signature"
	FailureExpired            FailureKind = "expired"
	FailureUserNotFound       FailureKind = "user_not_found"
	FailureUserDeactivated    FailureKind = "user_deactivated"
)

// ErrAuthentication is matched by every *AuthError.
var ErrAuthentication = errors.New("authentication failed")

// AuthError carries the failure kind. Err holds the underlying cause, if any.
type AuthError struct {
	Kind FailureKind
	Err  error
}

func newAuthError(kind FailureKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed: %s", e.Kind)
	}
	return fmt.Sprintf("authentication failed: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthentication
}

// KindOf extracts the failure kind from err, or "" when err is not an AuthError.
func KindOf(err error) FailureKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
