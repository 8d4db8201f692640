package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/featureflags"
	"github.com/aryan0dhankhar/propertyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/propertyhub/internal/repository"
	"github.com/aryan0dhankhar/propertyhub/internal/security/audit"
	"github.com/aryan0dhankhar/propertyhub/internal/security/auth"
	"github.com/aryan0dhankhar/propertyhub/internal/security/ratelimit"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

const minPasswordLen = 8

// AuthDeps wires an AuthService.
type AuthDeps struct {
	DB       database.Runner
	Repos    repository.Manager
	Hasher   *auth.PasswordHasher
	Tokens   *auth.TokenManager
	TokenTTL time.Duration
	Lockout  *ratelimit.LoginLockout
	Audit    *audit.Logger
	Flags    featureflags.Flags
	Logger   *slog.Logger
}

// AuthService handles authentication operations
type AuthService struct {
	db       database.Runner
	repos    repository.Manager
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenManager
	tokenTTL time.Duration
	lockout  *ratelimit.LoginLockout
	audit    *audit.Logger
	flags    featureflags.Flags
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(deps AuthDeps) *AuthService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewLogger(deps.Logger)
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.NewPasswordHasher(0)
	}
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 30 * time.Minute
	}

	return &AuthService{
		db:       deps.DB,
		repos:    deps.Repos,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		tokenTTL: deps.TokenTTL,
		lockout:  deps.Lockout,
		audit:    deps.Audit,
		flags:    deps.Flags,
		logger:   deps.Logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // seconds
	User        *domain.User `json:"user"`
}

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      domain.Role `json:"role"`
}

// Login authenticates a user and returns an access token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Invalid("email and password are required")
	}

	if s.lockout.Blocked(ctx, email) {
		metrics.ObserveAuthAttempt(metrics.AuthLockedOut)
		s.audit.LogLogin(ctx, "", audit.StatusDenied, "locked out: "+email)
		return nil, domain.ErrTooManyAttempts
	}

	user, err := database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) (*domain.User, error) {
		return s.repos.Users(sess).GetByEmail(ctx, email)
	})
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	if user == nil {
		auth.VerifyPassword(password, s.hasher.DummyHash())
		s.loginFailed(ctx, email, "", "unknown email")
		return nil, domain.ErrAuthenticationFailed
	}

	if !auth.VerifyPassword(password, user.HashedPassword) {
		s.loginFailed(ctx, email, user.ID, "wrong password")
		return nil, domain.ErrAuthenticationFailed
	}

	token, _, err := s.tokens.IssueFor(user, s.tokenTTL)
	if err != nil {
		if errors.Is(err, auth.ErrInactivePrincipal) {
			metrics.ObserveAuthAttempt(metrics.AuthInactive)
			s.audit.LogLogin(ctx, user.ID, audit.StatusDenied, "account "+string(user.Status))
			return nil, domain.ErrAccountInactive
		}
		return nil, err
	}

	s.lockout.Reset(ctx, email)
	metrics.ObserveAuthAttempt(metrics.AuthSuccess)
	s.audit.LogLogin(ctx, user.ID, audit.StatusSucceeded, "")
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokenTTL / time.Second),
		User:        user,
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, userID, reason string) {
	s.lockout.RecordFailure(ctx, email)
	metrics.ObserveAuthAttempt(metrics.AuthInvalidCredentials)
	s.audit.LogLogin(ctx, userID, audit.StatusFailed, reason)
}

// Register creates a pending account. It needs the self_registration flag;
// the account cannot log in until an administrator activates it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if !s.flags.Enabled(featureflags.SelfRegistration) {
		return nil, domain.ErrRegistrationClosed
	}

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleTenant
	}
	if role != domain.RoleTenant && role != domain.RoleLandlord {
		return nil, domain.Invalid("role must be tenant or landlord")
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "hash password", err)
	}

	user := &domain.User{
		Email:          email,
		HashedPassword: hash,
		Role:           role,
		Status:         domain.StatusPending,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		IsActive:       true,
	}

	err = s.db.WithSession(ctx, func(ctx context.Context, sess database.Session) error {
		if err := s.repos.Users(sess).Create(ctx, user); err != nil {
			return err
		}
		return sess.Commit()
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogUserChange(ctx, user.ID, audit.ActionRegister, user.ID, string(role))
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}

	err := s.db.WithSession(ctx, func(ctx context.Context, sess database.Session) error {
		users := s.repos.Users(sess)
		user, err := users.GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if !auth.VerifyPassword(current, user.HashedPassword) {
			return domain.Invalid("Current password is incorrect")
		}

		hash, err := s.hasher.HashPassword(next)
		if err != nil {
			return domain.WrapError(domain.ErrCodeInternal, "hash password", err)
		}
		user.HashedPassword = hash
		if err := users.Update(ctx, user); err != nil {
			return err
		}
		return sess.Commit()
	})
	if err != nil {
		s.audit.LogAction(ctx, actor.ID, audit.ActionPasswordChange, "user", actor.ID, audit.StatusFailed, err.Error())
		return err
	}

	s.audit.LogUserChange(ctx, actor.ID, audit.ActionPasswordChange, actor.ID, "")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) (string, error) {
	email = normalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Invalid("invalid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return domain.Invalid("password must be at least %d characters", minPasswordLen)
	}
	return nil
}
