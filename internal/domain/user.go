package domain

import (
	"context"
	"time"
)

// Role is a principal's role. The set is a Postgres enum extended by migrations.
type Role string

const (
	RoleTenant          Role = "tenant"
	RoleLandlord        Role = "landlord"
	RolePropertyManager Role = "property_manager"
	RoleAdmin           Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleTenant, RoleLandlord, RolePropertyManager, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusPending   UserStatus = "pending"
	StatusSuspended UserStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusSuspended:
		return true
	}
	return false
}

// User is an authenticatable principal. Users are never physically deleted;
// suspension is the terminal state.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	HashedPassword string     `json:"-"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	IsActive       bool       `json:"is_active"`
	EmailVerified  bool       `json:"email_verified"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CanAuthenticate reports whether the account may hold a usable token.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.Status == StatusActive && u.IsActive
}

// Actor returns the identity carried through authorization checks.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Email: u.Email, Role: u.Role}
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

// UserFilter narrows List results. Zero values match everything.
type UserFilter struct {
	Status UserStatus
	Role   Role
	Limit  int
	Offset int
}

// UserRepository is the data access contract for principals. Implementations
// run against the session they were constructed with.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByEmail compares case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	List(ctx context.Context, filter UserFilter) ([]*User, error)
	CountByStatus(ctx context.Context) (map[UserStatus]int, error)
}
