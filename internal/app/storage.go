package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tamrstore/storefront/internal/config"
	"github.com/tamrstore/storefront/internal/repository"
	"github.com/tamrstore/storefront/internal/repository/file"
	"github.com/tamrstore/storefront/internal/repository/memory"
	pgrepo "github.com/tamrstore/storefront/internal/repository/postgres"
	redisrepo "github.com/tamrstore/storefront/internal/repository/redis"
	"github.com/tamrstore/storefront/migrations"
	"github.com/tamrstore/storefront/pkg/database"
	"github.com/tamrstore/storefront/pkg/health"
)

// storage is the cart device chosen by CART_STORAGE_DRIVER together with
// its readiness check and cleanup.
type storage struct {
	device repository.KeyValueStore
	check  health.Checker
	close  func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory cart storage; carts are lost on restart")
		return &storage{device: memory.New(), close: func() {}}, nil

	case config.DriverFile:
		dev, err := file.New(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		logger.Info("using file cart storage", slog.String("dir", dev.Dir()))
		return &storage{device: dev, close: func() {}}, nil

	case config.DriverRedis:
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return &storage{
			device: redisrepo.New(rdb, cfg.CartTTLDuration()),
			check:  func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close:  closeRedis(rdb, logger),
		}, nil

	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			DBName:   cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSLMode,
			MaxConns: cfg.PostgresMaxConns,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		registerPoolStats(pool, logger)
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
		return &storage{
			device: pgrepo.New(pool),
			check:  pool.Ping,
			close:  pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func closeRedis(rdb *redis.Client, logger *slog.Logger) func() {
	return func() {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
}

func registerPoolStats(pool *pgxpool.Pool, logger *slog.Logger) {
	if err := prometheus.Register(database.NewPoolStatsCollector(pool)); err != nil {
		logger.Warn("pool stats collector not registered", slog.String("error", err.Error()))
	}
}
