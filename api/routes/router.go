package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mabar/mabar-backend/api/controllers"
	"github.com/mabar/mabar-backend/api/middleware"
	"github.com/mabar/mabar-backend/internal/auth"
	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/authz"
	"github.com/mabar/mabar-backend/pkg/config"
	"github.com/mabar/mabar-backend/pkg/enums"
	"github.com/mabar/mabar-backend/pkg/logger"
	"github.com/mabar/mabar-backend/pkg/metrics"
	"github.com/mabar/mabar-backend/pkg/oauth"
	"github.com/mabar/mabar-backend/pkg/ratelimit"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Auth     auth.Service
	Resolver *pkgAuth.Resolver
	Metrics  *metrics.AuthMetrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer    prometheus.Gatherer
	AuthLimiter ratelimit.Limiter
	APILimiter  ratelimit.Limiter
	// Google is nil when google sign-in is not configured.
	Google oauth.Provider
	Ready  map[string]controllers.Pinger
	// ClientIP is nil when no proxy is trusted.
	ClientIP *middleware.ClientIPResolver
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.ClientIP(deps.ClientIP),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.SecurityHeaders(cfg.App.IsProd()),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	required := middleware.Auth(deps.Resolver, deps.Metrics, logg)
	authByIP := middleware.RateLimit(deps.AuthLimiter, middleware.ClientIPKey, deps.Metrics, logg)
	authByEmail := middleware.RateLimit(deps.AuthLimiter, middleware.EmailKey, deps.Metrics, logg)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.APILimiter, middleware.ClientIPKey, deps.Metrics, logg))

		r.Get("/ping", controllers.PublicPing())

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authByIP, authByEmail)
				r.Post("/register", controllers.AuthRegister(deps.Auth, logg))
				r.Post("/login", controllers.AuthLogin(deps.Auth, logg))
				r.Post("/admin/login", controllers.AdminAuthLogin(deps.Auth, logg))
			})

			r.Post("/logout", controllers.AuthLogout())
			r.With(middleware.OptionalAuth(deps.Resolver, logg)).Get("/status", controllers.AuthStatus(deps.Auth))

			r.Group(func(r chi.Router) {
				r.Use(required)
				r.Get("/me", controllers.AuthMe(deps.Auth, logg))
				r.Post("/role", controllers.AuthSelectRole(deps.Auth, logg))
				r.Post("/password", controllers.AuthChangePassword(deps.Auth, logg))
			})

			if deps.Google != nil {
				r.Get("/google", controllers.GoogleLogin(deps.Google, cfg, logg))
				r.Get("/google/callback", controllers.GoogleCallback(deps.Google, deps.Auth, cfg, logg))
			}
		})

		r.Route("/venue-owner", func(r chi.Router) {
			r.Use(required, middleware.RequireMinRole(enums.UserRoleVenueOwner, logg))
			r.Get("/ping", controllers.ScopedPing("venue_owner"))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(required, middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Get("/ping", controllers.ScopedPing("admin"))
			r.With(middleware.RequirePermission(authz.PermManageSystem, logg)).
				Get("/permissions/{name}", controllers.AdminPermissionCheck(logg))
		})
	})

	return r
}
