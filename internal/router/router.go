// Package router assembles the HTTP surface: the versioned API, health
// probes and the metrics endpoint, wrapped in the request lifecycle chain.
package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/propertyhub/internal/handler"
	"github.com/aryan0dhankhar/propertyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/propertyhub/internal/security"
	"github.com/aryan0dhankhar/propertyhub/internal/security/middleware"
	"github.com/aryan0dhankhar/propertyhub/internal/security/ratelimit"
)

const defaultMaxBody = 1 << 20

// Deps wires the router.
type Deps struct {
	APIPrefix   string
	MaxBodySize int64
	ServiceName string
	Logger      *slog.Logger

	Tokens     middleware.TokenValidator
	Principals middleware.PrincipalVerifier
	Authz      *security.AuthorizationService
	Limiter    *ratelimit.Limiter

	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Properties *handler.PropertyHandler
	Health     *handler.HealthHandler
}

// New returns the root handler.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.APIPrefix == "" {
		d.APIPrefix = "/api/v1"
	}
	if d.MaxBodySize <= 0 {
		d.MaxBodySize = defaultMaxBody
	}
	if d.ServiceName == "" {
		d.ServiceName = "propertyhub"
	}
	if d.Authz == nil {
		d.Authz = security.NewAuthorizationService(d.Logger)
	}

	mux := http.NewServeMux()
	rt := routes{mux: mux, prefix: d.APIPrefix}

	rt.handle("GET /healthz", http.HandlerFunc(d.Health.Health))
	rt.handle("GET /readyz", http.HandlerFunc(d.Health.Ready))
	rt.handle("GET /metrics", promhttp.Handler())

	authenticated := middleware.JWTMiddleware(d.Tokens, d.Principals, d.Logger)
	requires := func(perm security.Permission) func(http.Handler) http.Handler {
		return middleware.RequirePermission(d.Authz, perm)
	}

	if d.Limiter != nil {
		limited := middleware.RateLimitMiddleware(d.Limiter, d.Logger, metrics.ObserveRateLimited)
		rt.api("POST /auth/login", handler.Func(d.Auth.Login), limited)
		rt.api("POST /auth/register", handler.Func(d.Auth.Register), limited)
		rt.api("POST /auth/change-password", handler.Func(d.Auth.ChangePassword), limited, authenticated)
	} else {
		rt.api("POST /auth/login", handler.Func(d.Auth.Login))
		rt.api("POST /auth/register", handler.Func(d.Auth.Register))
		rt.api("POST /auth/change-password", handler.Func(d.Auth.ChangePassword), authenticated)
	}

	rt.api("GET /users/me", handler.Func(d.Users.Me), authenticated)
	rt.api("GET /users", handler.Func(d.Users.List), authenticated, requires(security.PermReadUsers))
	rt.api("POST /users", handler.Func(d.Users.Create), authenticated, requires(security.PermManageUsers))
	rt.api("GET /users/{id}", handler.Func(d.Users.Get), authenticated)
	rt.api("PATCH /users/{id}/status", handler.Func(d.Users.SetStatus), authenticated, requires(security.PermManageUsers))
	rt.api("POST /users/{id}/password", handler.Func(d.Users.ResetPassword), authenticated, requires(security.PermManageUsers))
	rt.api("POST /users/{id}/verify-email", handler.Func(d.Users.VerifyEmail), authenticated, requires(security.PermManageUsers))

	rt.api("GET /properties", handler.Func(d.Properties.List), authenticated)
	rt.api("POST /properties", handler.Func(d.Properties.Create), authenticated, requires(security.PermCreateProperty))
	rt.api("GET /properties/{id}", handler.Func(d.Properties.Get), authenticated)

	root := middleware.Chain(mux,
		middleware.RequestLifecycle(d.Logger, metrics.HTTPCompletionHook()),
		middleware.LimitBody(d.MaxBodySize),
		middleware.ValidateJSONContentType(d.Logger),
	)
	return otelhttp.NewHandler(root, d.ServiceName)
}

type routes struct {
	mux    *http.ServeMux
	prefix string
}

// handle registers h under pattern and records the pattern as the request's
// route once the mux has matched it.
func (rt routes) handle(pattern string, h http.Handler, mws ...func(http.Handler) http.Handler) {
	h = middleware.Chain(h, mws...)
	rt.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SetRoute(r.Context(), r.Pattern)
		h.ServeHTTP(w, r)
	}))
}

// api registers "METHOD /path" under the API prefix.
func (rt routes) api(pattern string, h http.Handler, mws ...func(http.Handler) http.Handler) {
	method, path, _ := strings.Cut(pattern, " ")
	rt.handle(method+" "+rt.prefix+path, h, mws...)
}
