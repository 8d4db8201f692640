package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

const pqForeignKeyViolation = "23503"

const propertyColumns = `id, owner_id, name, property_type, address_line, city, state, postal_code,
	bedrooms, bathrooms, monthly_rent_cents, is_available, created_at, updated_at`

// PostgresPropertyRepository implements domain.PropertyRepository using PostgreSQL
type PostgresPropertyRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewPostgresPropertyRepository creates a new property repository
func NewPostgresPropertyRepository(db database.DBTX, logger *slog.Logger) *PostgresPropertyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPropertyRepository{db: db, logger: logger}
}

// Create creates a new property
func (r *PostgresPropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `
		INSERT INTO properties (id, owner_id, name, property_type, address_line, city, state,
			postal_code, bedrooms, bathrooms, monthly_rent_cents, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.OwnerID, p.Name, p.Type, p.AddressLine, p.City, p.State,
		p.PostalCode, p.Bedrooms, p.Bathrooms, p.MonthlyRent, p.IsAvailable,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return domain.Invalid("owner %s does not exist", p.OwnerID)
		}
		r.logger.Error("failed to create property",
			slog.String("owner_id", p.OwnerID),
			slog.String("error", err.Error()),
		)
		return domain.WrapError(domain.ErrCodePersistence, "create property", err)
	}
	return nil
}

// GetByID retrieves a property by ID
func (r *PostgresPropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrPropertyNotFound
	}

	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	p, err := scanProperty(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPropertyNotFound
		}
		r.logger.Error("failed to get property", slog.String("id", id), slog.String("error", err.Error()))
		return nil, domain.WrapError(domain.ErrCodePersistence, "get property", err)
	}
	return p, nil
}

// List returns properties matching filter, newest first.
func (r *PostgresPropertyRepository) List(ctx context.Context, filter domain.PropertyFilter) ([]*domain.Property, error) {
	var (
		conds []string
		args  []any
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		conds = append(conds, fmt.Sprintf("LOWER(city) = LOWER($%d)", len(args)))
	}
	if filter.AvailableOnly {
		conds = append(conds, "is_available")
	}

	query := `SELECT ` + propertyColumns + ` FROM properties`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list properties", slog.String("error", err.Error()))
		return nil, domain.WrapError(domain.ErrCodePersistence, "list properties", err)
	}
	defer rows.Close()

	properties := []*domain.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodePersistence, "scan property", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrCodePersistence, "list properties", err)
	}
	return properties, nil
}

func scanProperty(row rowScanner) (*domain.Property, error) {
	p := &domain.Property{}
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Type, &p.AddressLine, &p.City, &p.State, &p.PostalCode,
		&p.Bedrooms, &p.Bathrooms, &p.MonthlyRent, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
