package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Config holds database pool configuration.
type Config struct {
	URL              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	StatementTimeout time.Duration
	// Echo logs every statement a session runs at debug level.
	Echo bool
}

// ConnectionPool owns the process-wide *sql.DB. Request code reaches it only
// through WithSession.
type ConnectionPool struct {
	db               *sql.DB
	logger           *slog.Logger
	statementTimeout time.Duration
	echo             bool
	observe          func(outcome string)
}

// NewConnectionPool opens a Postgres pool and verifies it with a ping.
func NewConnectionPool(ctx context.Context, config *Config, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil || strings.TrimSpace(config.URL) == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}

	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}

	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctxTest, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctxTest); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	host, name := describeURL(config.URL)
	logger.Info("database connected successfully",
		slog.String("host", host),
		slog.String("database", name),
		slog.Int("max_open_conns", config.MaxOpenConns),
	)

	return NewConnectionPoolFromDB(db, config, logger), nil
}

// NewConnectionPoolFromDB wraps an already opened handle. The pool settings in
// config are not applied; only the session settings are.
func NewConnectionPoolFromDB(db *sql.DB, config *Config, logger *slog.Logger) *ConnectionPool {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = &Config{}
	}
	return &ConnectionPool{
		db:               db,
		logger:           logger,
		statementTimeout: config.StatementTimeout,
		echo:             config.Echo,
		observe:          func(string) {},
	}
}

// SetOutcomeObserver registers a callback invoked once per finished session
// with one of the Outcome* values.
func (cp *ConnectionPool) SetOutcomeObserver(fn func(outcome string)) {
	if fn == nil {
		fn = func(string) {}
	}
	cp.observe = fn
}

// GetDB returns the underlying pool for tooling such as migrations.
func (cp *ConnectionPool) GetDB() *sql.DB {
	return cp.db
}

// Close closes the pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Health checks the database health
func (cp *ConnectionPool) Health(ctx context.Context) error {
	ctxTest, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return cp.db.PingContext(ctxTest)
}

// describeURL extracts loggable parts of a DSN without the credentials.
func describeURL(raw string) (host, name string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown", "unknown"
	}
	return u.Host, strings.TrimPrefix(u.Path, "/")
}
