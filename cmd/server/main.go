package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/app"
	"github.com/aryan0dhankhar/propertyhub/internal/featureflags"
	"github.com/aryan0dhankhar/propertyhub/internal/handler"
	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/propertyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/propertyhub/internal/observability/tracing"
	"github.com/aryan0dhankhar/propertyhub/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/propertyhub/internal/repository"
	"github.com/aryan0dhankhar/propertyhub/internal/router"
	"github.com/aryan0dhankhar/propertyhub/internal/security"
	"github.com/aryan0dhankhar/propertyhub/internal/security/audit"
	"github.com/aryan0dhankhar/propertyhub/internal/security/auth"
	"github.com/aryan0dhankhar/propertyhub/internal/security/middleware"
	"github.com/aryan0dhankhar/propertyhub/internal/security/ratelimit"
	"github.com/aryan0dhankhar/propertyhub/internal/service"
	"github.com/aryan0dhankhar/propertyhub/internal/worker"
	"github.com/aryan0dhankhar/propertyhub/pkg/config"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "propertyhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	log.Info("starting propertyhub server",
		slog.String("environment", cfg.Environment),
		slog.String("api_prefix", cfg.Server.APIPrefix),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// 4. Database pool
	pool, err := app.OpenPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Flags.Enabled(featureflags.AutoMigrate) {
		if err := database.Migrate(ctx, pool.GetDB(), log); err != nil {
			return err
		}
	}

	// 5. Redis backs the login lockout; without it the lockout is off
	redisClient, err := app.OpenRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	var lockoutStore ratelimit.Counter
	if redisClient != nil {
		defer redisClient.Close()
		lockoutStore = redisClient
	} else {
		log.Warn("REDIS_URL not set, login lockout disabled")
	}

	breaker := circuitbreaker.New("login_lockout", 5, 1, 30*time.Second)
	breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		metrics.ObserveBreakerTransition(name, to.String())
	})

	// 6. Security components
	tokens, err := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.Issuer)
	if err != nil {
		return &config.ConfigurationError{Key: "SECRET_KEY", Reason: err.Error(), Err: err}
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	authz := security.NewAuthorizationService(log)
	auditLog := audit.NewLogger(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer rateLimiter.Stop()
	lockout := ratelimit.NewLoginLockout(lockoutStore, cfg.Redis.LoginMaxFailures, cfg.Redis.LoginLockoutWindow, breaker, log)

	// 7. Services
	repos := repository.NewPostgresManager(log)
	principals := service.NewPrincipalCache(pool, repos, service.PrincipalCacheTTL)
	authService := service.NewAuthService(service.AuthDeps{
		DB:       pool,
		Repos:    repos,
		Hasher:   hasher,
		Tokens:   tokens,
		TokenTTL: cfg.Auth.AccessTokenTTL(),
		Lockout:  lockout,
		Audit:    auditLog,
		Flags:    cfg.Flags,
		Logger:   log,
	})
	userService := service.NewUserService(pool, repos, hasher, authz, auditLog, principals, log)
	propertyService := service.NewPropertyService(pool, repos, authz, auditLog, log)

	// 8. Handlers and routes
	checks := map[string]handler.Check{"database": pool.Health}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	var verifier middleware.PrincipalVerifier
	if cfg.Flags.WithDefault(featureflags.StatusRecheck, true) {
		verifier = principals
	}

	root := router.New(router.Deps{
		APIPrefix:   cfg.Server.APIPrefix,
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      log,
		Tokens:      tokens,
		Principals:  verifier,
		Authz:       authz,
		Limiter:     rateLimiter,
		Auth:        handler.NewAuthHandler(authService, log),
		Users:       handler.NewUserHandler(userService, log),
		Properties:  handler.NewPropertyHandler(propertyService, log),
		Health:      handler.NewHealthHandler(checks, log),
	})

	// 9. Background stats
	go worker.NewStatsWorker(userService, log, cfg.Telemetry.StatsRefresh, principals).Start(ctx)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.Int("port", cfg.Server.Port),
			slog.Int("rate_limit", cfg.RateLimit.Requests),
			slog.Duration("rate_limit_window", cfg.RateLimit.Window),
			slog.Bool("login_lockout", lockoutStore != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	log.Info("server stopped")
	return nil
}
