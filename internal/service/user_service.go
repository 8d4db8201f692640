package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/repository"
	"github.com/aryan0dhankhar/propertyhub/internal/security"
	"github.com/aryan0dhankhar/propertyhub/internal/security/audit"
	"github.com/aryan0dhankhar/propertyhub/internal/security/auth"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

const maxPageSize = 100

// CreateUserInput carries an administrator-created account.
type CreateUserInput struct {
	Email         string
	Password      string
	Role          domain.Role
	Status        domain.UserStatus
	FirstName     string
	LastName      string
	EmailVerified bool
}

// UserService manages accounts on behalf of an authenticated actor.
type UserService struct {
	db         database.Runner
	repos      repository.Manager
	hasher     *auth.PasswordHasher
	authz      *security.AuthorizationService
	audit      *audit.Logger
	principals *PrincipalCache
	logger     *slog.Logger
}

// NewUserService creates a user service. principals may be nil when the
// status re-check is disabled.
func NewUserService(
	db database.Runner,
	repos repository.Manager,
	hasher *auth.PasswordHasher,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	principals *PrincipalCache,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &UserService{
		db:         db,
		repos:      repos,
		hasher:     hasher,
		authz:      authz,
		audit:      auditLog,
		principals: principals,
		logger:     logger,
	}
}

// Get returns the account id. Callers may always read their own account.
func (s *UserService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if actor.ID != id {
		if err := s.authz.ValidatePermission(actor.Role, security.PermReadUsers); err != nil {
			s.audit.LogDenied(ctx, actor.ID, "user", id, "read")
			return nil, err
		}
	}
	return database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) (*domain.User, error) {
		return s.repos.Users(sess).GetByID(ctx, id)
	})
}

// GetByEmail looks an account up by email.
func (s *UserService) GetByEmail(ctx context.Context, actor domain.Actor, email string) (*domain.User, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermReadUsers); err != nil {
		return nil, err
	}
	return database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) (*domain.User, error) {
		return s.repos.Users(sess).GetByEmail(ctx, normalizeEmail(email))
	})
}

// List returns accounts matching filter.
func (s *UserService) List(ctx context.Context, actor domain.Actor, filter domain.UserFilter) ([]*domain.User, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermReadUsers); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Invalid("unknown status %q", filter.Status)
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, domain.Invalid("unknown role %q", filter.Role)
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	return database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) ([]*domain.User, error) {
		return s.repos.Users(sess).List(ctx, filter)
	})
}

// SetStatus moves account id to status. A suspended account's outstanding
// tokens stop working on their next request.
func (s *UserService) SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, domain.Invalid("unknown status %q", status)
	}
	if actor.ID == id && status != domain.StatusActive {
		return nil, domain.Invalid("cannot change your own status")
	}

	user, err := s.update(ctx, actor, id, func(u *domain.User) error {
		u.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogUserChange(ctx, actor.ID, audit.ActionStatusChange, id, string(status))
	s.logger.Info("user status changed",
		slog.String("user_id", id),
		slog.String("status", string(status)),
		slog.String("actor_id", actor.ID),
	)
	return user, nil
}

// ResetPassword sets a new password for account id.
func (s *UserService) ResetPassword(ctx context.Context, actor domain.Actor, id, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "hash password", err)
	}

	if _, err := s.update(ctx, actor, id, func(u *domain.User) error {
		u.HashedPassword = hash
		return nil
	}); err != nil {
		return err
	}

	s.audit.LogUserChange(ctx, actor.ID, audit.ActionPasswordReset, id, "")
	return nil
}

// VerifyEmail marks account id's email as verified.
func (s *UserService) VerifyEmail(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	user, err := s.update(ctx, actor, id, func(u *domain.User) error {
		u.EmailVerified = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.LogUserChange(ctx, actor.ID, audit.ActionEmailVerify, id, "")
	return user, nil
}

// Create adds an account directly, bypassing self-registration.
func (s *UserService) Create(ctx context.Context, actor domain.Actor, in CreateUserInput) (*domain.User, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermManageUsers); err != nil {
		s.audit.LogDenied(ctx, actor.ID, "user", "", "create")
		return nil, err
	}

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = domain.RoleTenant
	}
	if !in.Role.Valid() {
		return nil, domain.Invalid("unknown role %q", in.Role)
	}
	if in.Status == "" {
		in.Status = domain.StatusActive
	}
	if !in.Status.Valid() {
		return nil, domain.Invalid("unknown status %q", in.Status)
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "hash password", err)
	}

	user := &domain.User{
		Email:          email,
		HashedPassword: hash,
		Role:           in.Role,
		Status:         in.Status,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		IsActive:       true,
		EmailVerified:  in.EmailVerified,
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

	s.audit.LogUserChange(ctx, actor.ID, audit.ActionUserCreate, user.ID, string(user.Role))
	return user, nil
}

// CountByStatus returns the number of accounts per status.
func (s *UserService) CountByStatus(ctx context.Context) (map[domain.UserStatus]int, error) {
	return database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) (map[domain.UserStatus]int, error) {
		return s.repos.Users(sess).CountByStatus(ctx)
	})
}

// update loads id, applies mutate and commits, all in one session. It needs
// PermManageUsers.
func (s *UserService) update(ctx context.Context, actor domain.Actor, id string, mutate func(*domain.User) error) (*domain.User, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermManageUsers); err != nil {
		s.audit.LogDenied(ctx, actor.ID, "user", id, "manage")
		return nil, err
	}

	user, err := database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) (*domain.User, error) {
		users := s.repos.Users(sess)
		user, err := users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(user); err != nil {
			return nil, err
		}
		if err := users.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, sess.Commit()
	})
	if err != nil {
		return nil, err
	}

	if s.principals != nil {
		s.principals.Invalidate(id)
	}
	return user, nil
}
