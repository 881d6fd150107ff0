package enums

import "fmt"

// AuthProvider records how an account was first created.
type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

var validAuthProviders = []AuthProvider{
	AuthProviderLocal,
	AuthProviderGoogle,
}

// String implements fmt.Stringer.
func (p AuthProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known AuthProvider.
func (p AuthProvider) IsValid() bool {
	for _, candidate := range validAuthProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseAuthProvider converts raw input into an AuthProvider.
func ParseAuthProvider(value string) (AuthProvider, error) {
	for _, candidate := range validAuthProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auth provider %q", value)
}
