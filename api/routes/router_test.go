package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mabar/mabar-backend/internal/auth"
	"github.com/mabar/mabar-backend/internal/users"
	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/config"
	"github.com/mabar/mabar-backend/pkg/metrics"
	"github.com/mabar/mabar-backend/pkg/ratelimit"
	"github.com/mabar/mabar-backend/pkg/security"
)

const strongPassword = "Str0ngP@ss!"

type testServer struct {
	*httptest.Server
	tokens *pkgAuth.TokenService
	store  *users.MemoryStore
}

func newTestServer(t *testing.T, authLimit int) *testServer {
	t.Helper()
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvDev}}

	policy := security.DevelopmentPolicy()
	policy.Argon = security.ArgonParams{Memory: 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

	reg := prometheus.NewRegistry()
	m := metrics.NewAuthMetrics(reg)

	tokens, err := pkgAuth.NewTokenService(config.JWTConfig{Secret: "router-test-secret-long-enough", Lifetime: "1h"}, nil)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	store := users.NewMemoryStore(nil)
	resolver, err := pkgAuth.NewResolver(pkgAuth.ResolverParams{Tokens: tokens, Users: store, LookupTimeout: time.Second})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	svc, err := auth.NewService(auth.ServiceParams{
		Users:     store,
		Passwords: security.NewEngine(security.EngineParams{Policy: policy, Observer: m}),
		Tokens:    tokens,
		Attempts:  m,
	})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if _, err := svc.SeedAdmin(t.Context(), config.AdminConfig{Email: "admin@example.com", Password: strongPassword}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	handler := NewRouter(Deps{
		Config:      cfg,
		Auth:        svc,
		Resolver:    resolver,
		Metrics:     m,
		Gatherer:    reg,
		AuthLimiter: ratelimit.NewMemory(ratelimit.Policy{Name: "auth", Limit: authLimit, Window: time.Minute}, nil),
		APILimiter:  ratelimit.NewMemory(ratelimit.Policy{Name: "api", Limit: 1000, Window: time.Minute}, nil),
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, tokens: tokens, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, payload
}

func dataField(t *testing.T, payload map[string]any, key string) any {
	t.Helper()
	data, ok := payload["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data envelope, got %v", payload)
	}
	return data[key]
}

func errorCode(payload map[string]any) string {
	if e, ok := payload["error"].(map[string]any); ok {
		code, _ := e["code"].(string)
		return code
	}
	return ""
}

func TestRegisterSelectRoleAndGatedRoutes(t *testing.T) {
	srv := newTestServer(t, 50)

	status, _ := srv.do(t, http.MethodPost, "/auth/register", "", `{"email":"a@b.com","password":"Weak1!"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", status)
	}

	status, payload := srv.do(t, http.MethodPost, "/auth/register", "", `{"email":"a@b.com","password":"`+strongPassword+`"}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, payload)
	}
	token := dataField(t, payload, "token").(string)
	claims, err := srv.tokens.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	user := dataField(t, payload, "user").(map[string]any)
	if claims.UserID.String() != user["id"] {
		t.Fatalf("expected token id %v, got %s", user["id"], claims.UserID)
	}

	status, payload = srv.do(t, http.MethodGet, "/venue-owner/ping", token, "")
	if status != http.StatusForbidden || errorCode(payload) != "ROLE_REQUIRED" {
		t.Fatalf("expected ROLE_REQUIRED before role selection, got %d %v", status, payload)
	}

	status, _ = srv.do(t, http.MethodPost, "/auth/role", token, `{"role":"admin"}`)
	if status != http.StatusForbidden {
		t.Fatalf("expected admin self-assignment to be forbidden, got %d", status)
	}

	status, payload = srv.do(t, http.MethodPost, "/auth/role", token, `{"role":"venue_owner"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200 selecting role, got %d %v", status, payload)
	}
	ownerToken := dataField(t, payload, "token").(string)

	if status, _ = srv.do(t, http.MethodGet, "/venue-owner/ping", ownerToken, ""); status != http.StatusOK {
		t.Fatalf("expected venue owner admitted, got %d", status)
	}
	status, payload = srv.do(t, http.MethodGet, "/admin/ping", ownerToken, "")
	if status != http.StatusForbidden || errorCode(payload) != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN for admin route, got %d %v", status, payload)
	}
}

func TestAuthStatusAndMe(t *testing.T) {
	srv := newTestServer(t, 50)

	status, payload := srv.do(t, http.MethodGet, "/auth/status", "", "")
	if status != http.StatusOK || dataField(t, payload, "is_authenticated") != false {
		t.Fatalf("expected anonymous status, got %d %v", status, payload)
	}
	status, payload = srv.do(t, http.MethodGet, "/auth/status", "not-a-token", "")
	if status != http.StatusOK || dataField(t, payload, "is_authenticated") != false {
		t.Fatalf("expected invalid token to be anonymous, got %d %v", status, payload)
	}
	if status, _ = srv.do(t, http.MethodGet, "/auth/me", "", ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for /auth/me without token, got %d", status)
	}

	_, payload = srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"admin@example.com","password":"`+strongPassword+`"}`)
	token := dataField(t, payload, "token").(string)

	status, payload = srv.do(t, http.MethodGet, "/auth/me", token, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200 for /auth/me, got %d", status)
	}
	if perms, ok := dataField(t, payload, "permissions").([]any); !ok || len(perms) == 0 {
		t.Fatalf("expected admin permissions, got %v", payload)
	}
	if status, _ = srv.do(t, http.MethodGet, "/admin/permissions/manage_users", token, ""); status != http.StatusOK {
		t.Fatalf("expected admin permission check to succeed, got %d", status)
	}
	if status, _ = srv.do(t, http.MethodGet, "/admin/permissions/fly", token, ""); status != http.StatusNotFound {
		t.Fatalf("expected unknown permission 404, got %d", status)
	}
}

func TestDeactivatedUserIsRejectedWithLiveToken(t *testing.T) {
	srv := newTestServer(t, 50)

	_, payload := srv.do(t, http.MethodPost, "/auth/register", "", `{"email":"gone@b.com","password":"`+strongPassword+`"}`)
	token := dataField(t, payload, "token").(string)
	claims, _ := srv.tokens.Validate(token)

	if err := srv.store.SetActive(t.Context(), claims.UserID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if status, _ := srv.do(t, http.MethodGet, "/auth/me", token, ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deactivated user, got %d", status)
	}
	status, _ := srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"gone@b.com","password":"`+strongPassword+`"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected deactivated login 401, got %d", status)
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	srv := newTestServer(t, 2)
	body := `{"email":"nobody@b.com","password":"` + strongPassword + `"}`

	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}
	for i, code := range want {
		if status, _ := srv.do(t, http.MethodPost, "/auth/login", "", body); status != code {
			t.Fatalf("attempt %d: expected %d got %d", i+1, code, status)
		}
	}
	if status, _ := srv.do(t, http.MethodGet, "/auth/status", "", ""); status != http.StatusOK {
		t.Fatalf("expected non-credential routes unaffected, got %d", status)
	}
}

func TestAuthRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	srv := newTestServer(t, 2)

	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}
	for i, code := range want {
		body := fmt.Sprintf(`{"email":"spoof%d@b.com","password":"%s"}`, i, strongPassword)
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/login", strings.NewReader(body))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
		resp.Body.Close()
		if resp.StatusCode != code {
			t.Fatalf("attempt %d: expected %d got %d", i+1, code, resp.StatusCode)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, 50)

	if status, _ := srv.do(t, http.MethodGet, "/health/live", "", ""); status != http.StatusOK {
		t.Fatalf("expected live 200, got %d", status)
	}
	if status, _ := srv.do(t, http.MethodGet, "/health/ready", "", ""); status != http.StatusOK {
		t.Fatalf("expected ready 200, got %d", status)
	}

	srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"nobody@b.com","password":"x"}`)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "auth_attempts_total") {
		t.Fatalf("expected auth_attempts_total in metrics output")
	}
}

func TestGoogleRoutesAbsentWhenUnconfigured(t *testing.T) {
	srv := newTestServer(t, 50)
	if status, _ := srv.do(t, http.MethodGet, "/auth/google", "", ""); status != http.StatusNotFound {
		t.Fatalf("expected 404 without google config, got %d", status)
	}
}
