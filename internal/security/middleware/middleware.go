package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/security"
	"github.com/aryan0dhankhar/propertyhub/internal/security/auth"
	"github.com/aryan0dhankhar/propertyhub/internal/security/ratelimit"
)

// TokenValidator validates bearer tokens. *auth.TokenManager implements it.
type TokenValidator interface {
	ValidateToken(raw string) (*auth.Claims, error)
}

// PrincipalVerifier confirms that a token's subject may still act. It returns
// an UNAUTHORIZED domain error for suspended or unknown principals.
type PrincipalVerifier interface {
	VerifyActive(ctx context.Context, subject string) error
}

// JWTMiddleware requires a valid bearer token and stores its claims in the
// request context. A nil verifier skips the status re-check.
func JWTMiddleware(tm TokenValidator, verifier PrincipalVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := auth.ExtractToken(r.Header.Get("Authorization"))
			if err != nil {
				writeUnauthorized(w, domain.ErrNotAuthenticated.Message)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				LoggerFromContext(r.Context()).Info("token rejected", slog.String("reason", err.Error()))
				writeUnauthorized(w, detailOf(err, auth.ErrInvalidSignature.Message))
				return
			}

			if verifier != nil {
				if err := verifier.VerifyActive(r.Context(), claims.Subject); err != nil {
					if domain.IsDomainError(err, domain.ErrCodeUnauthorized) || domain.IsDomainError(err, domain.ErrCodeNotFound) {
						LoggerFromContext(r.Context()).Info("principal rejected",
							slog.String("user_id", claims.Subject),
							slog.String("reason", err.Error()),
						)
						writeUnauthorized(w, auth.ErrInvalidSignature.Message)
						return
					}
					if !RecordFault(r.Context(), err) {
						log.Error("principal verification failed", slog.String("error", err.Error()))
						writeInternalError(w, RequestIDFromContext(r.Context()))
					}
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects callers whose role lacks perm. It must run after
// JWTMiddleware.
func RequirePermission(authz *security.AuthorizationService, perm security.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, domain.ErrNotAuthenticated.Message)
				return
			}
			if err := authz.ValidatePermission(actor.Role, perm); err != nil {
				WriteDetail(w, http.StatusForbidden, domain.ErrForbidden.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware limits requests per client address. onLimited, when
// set, is called with the request path for every rejection.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger, onLimited func(path string)) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientAddr(r)
			if info, ok := RequestInfoFromContext(r.Context()); ok {
				key = info.ClientAddr
			}

			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("client_addr", key),
					slog.String("path", r.URL.Path),
				)
				if onLimited != nil {
					onLimited(r.URL.Path)
				}
				w.Header().Set("Retry-After", "60")
				WriteDetail(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the validated token claims.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

// ActorFromContext returns the authenticated caller.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: c.Subject, Email: c.Email, Role: c.Role}, true
}

// WithActor returns ctx carrying claims for actor. Handler tests use it to
// skip token validation.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	claims := &auth.Claims{Email: actor.Email, Role: actor.Role}
	claims.Subject = actor.ID
	return context.WithValue(ctx, claimsKey, claims)
}

// WriteDetail writes {"detail": detail} with status.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteDetail(w, http.StatusUnauthorized, detail)
}

func detailOf(err error, fallback string) string {
	var dErr *domain.Error
	if errors.As(err, &dErr) && dErr.Message != "" {
		return dErr.Message
	}
	return fallback
}
