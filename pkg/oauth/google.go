// Package oauth wraps the Google authorization-code flow used for
// password-less sign in.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/mabar/mabar-backend/pkg/config"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// ErrUnverifiedEmail is returned when Google reports the email as unverified.
var ErrUnverifiedEmail = errors.New("google account email is not verified")

// Profile is the subset of the Google userinfo document we rely on.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Provider is the surface the HTTP layer needs.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// GoogleParams allows tests to point the flow at a fake server.
type GoogleParams struct {
	Config      config.OAuthConfig
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

// Google implements Provider against Google's OAuth2 endpoints.
type Google struct {
	oauth2Config *oauth2.Config
	userInfoURL  string
}

// NewGoogle builds the provider. Client id and secret are required.
func NewGoogle(params GoogleParams) (*Google, error) {
	cfg := params.Config
	if !cfg.GoogleEnabled() {
		return nil, fmt.Errorf("google client id and secret are required")
	}
	if cfg.GoogleRedirectURL == "" {
		return nil, fmt.Errorf("google redirect url is required")
	}

	endpoint := oauth2.Endpoint{AuthURL: googleAuthURL, TokenURL: googleTokenURL}
	if params.Endpoint != nil {
		endpoint = *params.Endpoint
	}
	userInfoURL := params.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}

	return &Google{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
	}, nil
}

// AuthCodeURL returns the consent page URL carrying state.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth2Config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the authorization code for a token and fetches the profile.
func (g *Google) Exchange(ctx context.Context, code string) (*Profile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	token, err := g.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := g.oauth2Config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	if profile.Subject == "" || profile.Email == "" {
		return nil, fmt.Errorf("userinfo missing subject or email")
	}
	if !profile.EmailVerified {
		return nil, ErrUnverifiedEmail
	}
	return &profile, nil
}

// NewState returns an unguessable value for the state parameter.
func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
