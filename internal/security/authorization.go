package security

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermReadProperty     Permission = "read_property"
	PermCreateProperty   Permission = "create_property"
	PermManageProperties Permission = "manage_properties"
	PermReadUsers        Permission = "read_users"
	PermManageUsers      Permission = "manage_users"
	PermViewAuditLog     Permission = "view_audit_log"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermReadProperty,
		PermCreateProperty,
		PermManageProperties,
		PermReadUsers,
		PermManageUsers,
		PermViewAuditLog,
	},
	domain.RolePropertyManager: {
		PermReadProperty,
		PermCreateProperty,
		PermManageProperties,
		PermReadUsers,
	},
	domain.RoleLandlord: {
		PermReadProperty,
		PermCreateProperty,
	},
	domain.RoleTenant: {
		PermReadProperty,
	},
}

// ResourceType identifies the kind of resource being accessed
type ResourceType string

const (
	ResourceProperty ResourceType = "property"
	ResourceUser     ResourceType = "user"
)

// ResourcePermission describes an access to one owned resource.
type ResourcePermission struct {
	ResourceType ResourceType
	ResourceID   string
	OwnerID      string
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	return slices.Contains(RolePermissions[role], permission)
}

// ValidatePermission returns a FORBIDDEN error when role lacks permission.
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return domain.WrapError(domain.ErrCodeForbidden, domain.ErrForbidden.Message,
			fmt.Errorf("%s role cannot %s", role, permission))
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// ValidateResourceAccess lets owners reach their own resources. Roles holding
// PermManageProperties reach every property, and PermManageUsers every user.
func (as *AuthorizationService) ValidateResourceAccess(actor domain.Actor, perm ResourcePermission) error {
	switch {
	case perm.ResourceType == ResourceProperty && as.HasPermission(actor.Role, PermManageProperties):
		return nil
	case perm.ResourceType == ResourceUser && as.HasPermission(actor.Role, PermManageUsers):
		return nil
	case perm.OwnerID != "" && perm.OwnerID == actor.ID:
		return nil
	}

	as.logger.Warn("resource access denied",
		slog.String("user_id", actor.ID),
		slog.String("resource_id", perm.ResourceID),
		slog.String("resource_type", string(perm.ResourceType)),
		slog.String("owner_id", perm.OwnerID),
	)
	return domain.WrapError(domain.ErrCodeForbidden, domain.ErrForbidden.Message,
		fmt.Errorf("%s does not own %s %s", actor.ID, perm.ResourceType, perm.ResourceID))
}
