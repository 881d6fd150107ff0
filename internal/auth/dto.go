package auth

import (
	"github.com/mabar/mabar-backend/internal/users"
	"github.com/mabar/mabar-backend/pkg/authz"
)

// RegisterRequest is the payload for creating a local account.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
}

// LoginRequest captures the user credentials sent to the login endpoints.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SelectRoleRequest carries the role picked during onboarding.
type SelectRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// ChangePasswordRequest replaces the current password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// AuthResponse is returned by every flow that issues a token.
type AuthResponse struct {
	Token      string         `json:"token"`
	User       *users.UserDTO `json:"user"`
	RedirectTo string         `json:"redirect_to"`
	IsNewUser  bool           `json:"is_new_user,omitempty"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	User        *users.UserDTO     `json:"user"`
	Permissions []authz.Permission `json:"permissions"`
	RedirectTo  string             `json:"redirect_to"`
}

// StatusResponse never carries an error; anonymous callers get IsAuthenticated=false.
type StatusResponse struct {
	IsAuthenticated bool           `json:"is_authenticated"`
	User            *users.UserDTO `json:"user,omitempty"`
}
