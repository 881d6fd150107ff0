package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"github.com/mabar/mabar-backend/pkg/config"
)

func testOAuthConfig() config.OAuthConfig {
	return config.OAuthConfig{
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURL:  "http://localhost:8080/auth/google/callback",
	}
}

func newFakeGoogle(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "access", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(t *testing.T, srv *httptest.Server) *Google {
	t.Helper()
	g, err := NewGoogle(GoogleParams{
		Config:      testOAuthConfig(),
		Endpoint:    &oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
		UserInfoURL: srv.URL + "/userinfo",
	})
	if err != nil {
		t.Fatalf("new google: %v", err)
	}
	return g
}

func TestExchangeReturnsProfile(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{
		"sub": "google-123", "email": " Player@Example.com ", "email_verified": true,
		"given_name": "Pat", "family_name": "Player",
	})
	g := newTestGoogle(t, srv)

	profile, err := g.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if profile.Subject != "google-123" || profile.Email != "player@example.com" || profile.GivenName != "Pat" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestExchangeFailures(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{"sub": "google-123", "email": "p@example.com", "email_verified": false})
	g := newTestGoogle(t, srv)

	if _, err := g.Exchange(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty code")
	}
	if _, err := g.Exchange(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error for rejected code")
	}
	if _, err := g.Exchange(context.Background(), "good-code"); !errors.Is(err, ErrUnverifiedEmail) {
		t.Fatalf("expected unverified email error, got %v", err)
	}
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	g, err := NewGoogle(GoogleParams{Config: testOAuthConfig()})
	if err != nil {
		t.Fatalf("new google: %v", err)
	}
	raw := g.AuthCodeURL("state-xyz")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if u.Host != "accounts.google.com" || q.Get("state") != "state-xyz" || q.Get("client_id") != "client-id" {
		t.Fatalf("unexpected auth url %s", raw)
	}
}

func TestNewGoogleRequiresCredentials(t *testing.T) {
	if _, err := NewGoogle(GoogleParams{}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestNewStateIsRandom(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	b, _ := NewState()
	if a == b || len(a) < 40 {
		t.Fatalf("unexpected states %q %q", a, b)
	}
}
