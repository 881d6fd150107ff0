package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/mabar/mabar-backend/api/controllers"
	"github.com/mabar/mabar-backend/api/middleware"
	"github.com/mabar/mabar-backend/api/routes"
	"github.com/mabar/mabar-backend/internal/auth"
	"github.com/mabar/mabar-backend/internal/users"
	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/config"
	"github.com/mabar/mabar-backend/pkg/db"
	"github.com/mabar/mabar-backend/pkg/logger"
	"github.com/mabar/mabar-backend/pkg/metrics"
	"github.com/mabar/mabar-backend/pkg/migrate"
	"github.com/mabar/mabar-backend/pkg/oauth"
	"github.com/mabar/mabar-backend/pkg/ratelimit"
	"github.com/mabar/mabar-backend/pkg/redis"
	"github.com/mabar/mabar-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	ready := map[string]controllers.Pinger{}

	var store users.Store
	if cfg.FeatureFlags.UsesDatabase() {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return err
		}
		closers = append(closers, dbClient.Close)
		ready["db"] = dbClient

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			return err
		}
		store = users.NewRepository(dbClient.DB())
	} else {
		logg.Warn(ctx, "using in-memory user store; accounts are lost on restart")
		store = users.NewMemoryStore(nil)
	}
	store = users.NewCachedStore(store, cfg.Cache.UserSize, cfg.Cache.UserTTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.NewAuthMetrics(reg)

	passwords := newPasswordEngine(cfg, authMetrics)

	tokens, err := pkgAuth.NewTokenService(cfg.JWT, nil)
	if err != nil {
		return err
	}
	resolver, err := pkgAuth.NewResolver(pkgAuth.ResolverParams{
		Tokens:        tokens,
		Users:         store,
		LookupTimeout: cfg.DB.QueryTimeout,
	})
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Users:     store,
		Passwords: passwords,
		Tokens:    tokens,
		Attempts:  authMetrics,
	})
	if err != nil {
		return err
	}

	created, err := authService.SeedAdmin(ctx, cfg.Admin)
	if err != nil {
		return err
	}
	if created {
		logg.Info(logg.WithField(ctx, "email", users.NormalizeEmail(cfg.Admin.Email)), "seeded admin account")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() || cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		ready["redis"] = redisClient
	}

	var authLimiter, apiLimiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case config.RateLimitBackendRedis:
		authLimiter = ratelimit.NewRedis(ratelimit.AuthPolicy(cfg.RateLimit), redisClient, nil)
		apiLimiter = ratelimit.NewRedis(ratelimit.APIPolicy(cfg.RateLimit), redisClient, nil)
	default:
		authMem := ratelimit.NewMemory(ratelimit.AuthPolicy(cfg.RateLimit), nil)
		apiMem := ratelimit.NewMemory(ratelimit.APIPolicy(cfg.RateLimit), nil)
		authMem.StartSweeper(ctx, cfg.RateLimit.SweepInterval)
		apiMem.StartSweeper(ctx, cfg.RateLimit.SweepInterval)
		authLimiter, apiLimiter = authMem, apiMem
	}

	clientIPs, err := middleware.NewClientIPResolver(cfg.App.TrustedProxies)
	if err != nil {
		return err
	}

	var google oauth.Provider
	if cfg.OAuth.GoogleEnabled() {
		g, err := oauth.NewGoogle(oauth.GoogleParams{Config: cfg.OAuth})
		if err != nil {
			return err
		}
		google = g
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"user_store": cfg.FeatureFlags.UserStore,
		"rate_limit": cfg.RateLimit.Backend,
		"google":     google != nil,
		"proxies":    len(cfg.App.TrustedProxies),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			Auth:        authService,
			Resolver:    resolver,
			Metrics:     authMetrics,
			Gatherer:    reg,
			AuthLimiter: authLimiter,
			APILimiter:  apiLimiter,
			Google:      google,
			Ready:       ready,
			ClientIP:    clientIPs,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(serverCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}

func newPasswordEngine(cfg *config.Config, observer security.HashObserver) *security.Engine {
	return security.NewEngine(security.EngineParams{
		Policy:        security.PolicyFromConfig(cfg.App, cfg.Password),
		MaxConcurrent: cfg.Password.MaxConcurrentHashes,
		Observer:      observer,
	})
}
