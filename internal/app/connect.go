// Package app holds the startup wiring shared by the server and propertyctl.
package app

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/propertyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/propertyhub/internal/reliability/retry"
	"github.com/aryan0dhankhar/propertyhub/pkg/config"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

// OpenPool connects to the configured database, retrying while it comes up.
// Session outcomes are reported to the metrics package.
func OpenPool(ctx context.Context, cfg *config.Config, log *slog.Logger) (*database.ConnectionPool, error) {
	dbCfg := &database.Config{
		URL:              cfg.Database.URL,
		MaxOpenConns:     cfg.Database.PoolSize,
		MaxIdleConns:     cfg.Database.MaxIdle,
		ConnMaxLifetime:  cfg.Database.PoolRecycle,
		StatementTimeout: cfg.Database.StatementTimeout,
		Echo:             cfg.Database.EchoSQL,
	}

	pool, err := retry.Do(ctx, retry.StartupConfig(), log, "connect database",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, dbCfg, log)
		})
	if err != nil {
		return nil, err
	}
	pool.SetOutcomeObserver(metrics.ObserveSession)
	return pool, nil
}

// OpenRedis connects to the configured Redis. It returns nil, nil when no URL
// is configured.
func OpenRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}
	return retry.Do(ctx, retry.StartupConfig(), log, "connect redis",
		func(ctx context.Context) (*redis.Client, error) {
			return redis.NewClient(ctx, cfg.Redis.URL, log)
		})
}
