package controllers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/mabar/mabar-backend/api/responses"
	"github.com/mabar/mabar-backend/internal/auth"
	"github.com/mabar/mabar-backend/pkg/config"
	pkgerrors "github.com/mabar/mabar-backend/pkg/errors"
	"github.com/mabar/mabar-backend/pkg/logger"
	"github.com/mabar/mabar-backend/pkg/oauth"
)

const (
	oauthStateCookie = "mabar_oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// GoogleLogin redirects to the Google consent page with a fresh state cookie.
func GoogleLogin(provider oauth.Provider, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := oauth.NewState()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate oauth state"))
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/auth/google",
			MaxAge:   int(oauthStateTTL.Seconds()),
			HttpOnly: true,
			Secure:   cfg.App.IsProd(),
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
	}
}

// GoogleCallback completes the code exchange and hands the token to the
// frontend in the URL fragment so it never reaches server logs.
func GoogleCallback(provider oauth.Provider, svc auth.Service, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(oauthStateCookie)
		state := r.URL.Query().Get("state")
		if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid oauth state"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/auth/google", MaxAge: -1, HttpOnly: true})

		if errParam := r.URL.Query().Get("error"); errParam != "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "google sign-in was cancelled"))
			return
		}

		profile, err := provider.Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			if errors.Is(err, oauth.ErrUnverifiedEmail) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "google email is not verified"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "google sign-in failed"))
			return
		}

		result, err := svc.OAuthLogin(r.Context(), *profile)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		http.Redirect(w, r, frontendCallbackURL(cfg.OAuth.FrontendURL, result), http.StatusFound)
	}
}

func frontendCallbackURL(base string, result *auth.AuthResponse) string {
	fragment := url.Values{}
	fragment.Set("token", result.Token)
	fragment.Set("redirect_to", result.RedirectTo)
	if result.IsNewUser {
		fragment.Set("new_user", "true")
	}
	return base + "/auth/callback#" + fragment.Encode()
}
