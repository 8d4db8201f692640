package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/repository"
	"github.com/aryan0dhankhar/propertyhub/internal/security"
	"github.com/aryan0dhankhar/propertyhub/internal/security/audit"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

// CreatePropertyInput carries a new listing. OwnerID defaults to the caller.
type CreatePropertyInput struct {
	OwnerID     string              `json:"owner_id"`
	Name        string              `json:"name"`
	Type        domain.PropertyType `json:"property_type"`
	AddressLine string              `json:"address_line"`
	City        string              `json:"city"`
	State       string              `json:"state"`
	PostalCode  string              `json:"postal_code"`
	Bedrooms    int                 `json:"bedrooms"`
	Bathrooms   float64             `json:"bathrooms"`
	MonthlyRent int64               `json:"monthly_rent_cents"`
	IsAvailable *bool               `json:"is_available"`
}

// PropertyService manages property listings
type PropertyService struct {
	db     database.Runner
	repos  repository.Manager
	authz  *security.AuthorizationService
	audit  *audit.Logger
	logger *slog.Logger
}

// NewPropertyService creates a new property service
func NewPropertyService(
	db database.Runner,
	repos repository.Manager,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *PropertyService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &PropertyService{db: db, repos: repos, authz: authz, audit: auditLog, logger: logger}
}

// List returns listings matching filter.
func (s *PropertyService) List(ctx context.Context, actor domain.Actor, filter domain.PropertyFilter) ([]*domain.Property, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermReadProperty); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	return database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) ([]*domain.Property, error) {
		return s.repos.Properties(sess).List(ctx, filter)
	})
}

// Get returns one listing.
func (s *PropertyService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Property, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermReadProperty); err != nil {
		return nil, err
	}
	return database.WithSession(ctx, s.db, func(ctx context.Context, sess database.Session) (*domain.Property, error) {
		return s.repos.Properties(sess).GetByID(ctx, id)
	})
}

// Create adds a listing. Only property managers and admins may list on behalf
// of another owner.
func (s *PropertyService) Create(ctx context.Context, actor domain.Actor, in CreatePropertyInput) (*domain.Property, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermCreateProperty); err != nil {
		s.audit.LogDenied(ctx, actor.ID, "property", "", "create")
		return nil, err
	}

	if in.OwnerID == "" {
		in.OwnerID = actor.ID
	}
	if err := s.authz.ValidateResourceAccess(actor, security.ResourcePermission{
		ResourceType: security.ResourceProperty,
		OwnerID:      in.OwnerID,
	}); err != nil {
		s.audit.LogDenied(ctx, actor.ID, "property", "", "create for "+in.OwnerID)
		return nil, err
	}

	p, err := in.property()
	if err != nil {
		return nil, err
	}

	err = s.db.WithSession(ctx, func(ctx context.Context, sess database.Session) error {
		if err := s.repos.Properties(sess).Create(ctx, p); err != nil {
			return err
		}
		return sess.Commit()
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogAction(ctx, actor.ID, audit.ActionPropertyCreate, "property", p.ID, audit.StatusSucceeded, p.OwnerID)
	s.logger.Info("property created",
		slog.String("property_id", p.ID),
		slog.String("owner_id", p.OwnerID),
	)
	return p, nil
}

func (in CreatePropertyInput) property() (*domain.Property, error) {
	p := &domain.Property{
		OwnerID:     in.OwnerID,
		Name:        strings.TrimSpace(in.Name),
		Type:        in.Type,
		AddressLine: strings.TrimSpace(in.AddressLine),
		City:        strings.TrimSpace(in.City),
		State:       strings.TrimSpace(in.State),
		PostalCode:  strings.TrimSpace(in.PostalCode),
		Bedrooms:    in.Bedrooms,
		Bathrooms:   in.Bathrooms,
		MonthlyRent: in.MonthlyRent,
		IsAvailable: true,
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}

	switch {
	case p.Name == "":
		return nil, domain.Invalid("name is required")
	case !p.Type.Valid():
		return nil, domain.Invalid("unknown property type %q", p.Type)
	case p.AddressLine == "" || p.City == "":
		return nil, domain.Invalid("address_line and city are required")
	case p.Bedrooms < 0 || p.Bathrooms < 0:
		return nil, domain.Invalid("bedrooms and bathrooms must not be negative")
	case p.MonthlyRent < 0:
		return nil, domain.Invalid("monthly_rent_cents must not be negative")
	}
	return p, nil
}
