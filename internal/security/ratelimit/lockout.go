package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/reliability/circuitbreaker"
)

const (
	lockoutKeyPrefix = "login_failures:"
	storeTimeout     = 250 * time.Millisecond
)

// Counter is the shared store behind LoginLockout. The Redis client
// implements it.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// LoginLockout counts failed logins per email and blocks further attempts
// once maxFailures is reached inside window. Store errors never block a
// login: the lockout fails open and a breaker stops hammering a dead store.
type LoginLockout struct {
	store       Counter
	maxFailures int64
	window      time.Duration
	breaker     *circuitbreaker.CircuitBreaker
	logger      *slog.Logger
}

// NewLoginLockout returns a lockout over store. A nil store disables it.
func NewLoginLockout(store Counter, maxFailures int, window time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *LoginLockout {
	if logger == nil {
		logger = slog.Default()
	}
	if breaker == nil {
		breaker = circuitbreaker.New("login_lockout", 5, 1, 30*time.Second)
	}
	return &LoginLockout{
		store:       store,
		maxFailures: int64(max(maxFailures, 1)),
		window:      window,
		breaker:     breaker,
		logger:      logger,
	}
}

// Blocked reports whether email has exhausted its failed attempts.
func (l *LoginLockout) Blocked(ctx context.Context, email string) bool {
	if l == nil || l.store == nil {
		return false
	}
	var n int64
	err := l.call(ctx, func(ctx context.Context) error {
		var err error
		n, err = l.store.Count(ctx, key(email))
		return err
	})
	if err != nil {
		l.logger.Warn("login lockout unavailable, allowing attempt", slog.String("error", err.Error()))
		return false
	}
	return n >= l.maxFailures
}

// RecordFailure counts one failed attempt for email.
func (l *LoginLockout) RecordFailure(ctx context.Context, email string) {
	if l == nil || l.store == nil {
		return
	}
	err := l.call(ctx, func(ctx context.Context) error {
		_, err := l.store.Increment(ctx, key(email), l.window)
		return err
	})
	if err != nil {
		l.logger.Warn("failed to record login failure", slog.String("error", err.Error()))
	}
}

// Reset clears the failures for email after a successful login.
func (l *LoginLockout) Reset(ctx context.Context, email string) {
	if l == nil || l.store == nil {
		return
	}
	err := l.call(ctx, func(ctx context.Context) error {
		return l.store.Delete(ctx, key(email))
	})
	if err != nil {
		l.logger.Warn("failed to reset login failures", slog.String("error", err.Error()))
	}
}

func (l *LoginLockout) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()
		return fn(ctx)
	})
}

func key(email string) string {
	return lockoutKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}
