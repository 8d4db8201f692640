package repository

import (
	"log/slog"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

// Manager builds repositories bound to one database handle, normally the
// session of the current unit of work.
type Manager interface {
	Users(db database.DBTX) domain.UserRepository
	Properties(db database.DBTX) domain.PropertyRepository
}

// PostgresManager builds the Postgres repositories.
type PostgresManager struct {
	logger *slog.Logger
}

// NewPostgresManager returns a Manager for Postgres.
func NewPostgresManager(logger *slog.Logger) *PostgresManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresManager{logger: logger}
}

func (m *PostgresManager) Users(db database.DBTX) domain.UserRepository {
	return NewPostgresUserRepository(db, m.logger)
}

func (m *PostgresManager) Properties(db database.DBTX) domain.PropertyRepository {
	return NewPostgresPropertyRepository(db, m.logger)
}
