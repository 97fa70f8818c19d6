package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"showcase/internal/config"
	"showcase/internal/models"

	"github.com/avast/retry-go/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store owns the connection pool. It is created once at process start and
// handed to every component that needs it.
type Store struct {
	DB *gorm.DB
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.URL), nil
	case "mysql":
		return mysql.Open(cfg.URL), nil
	case "sqlite":
		return sqlite.Open(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open connects, configures the pool and migrates the schema. The initial
// connection is retried so the service can start before the database is ready.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	var gdb *gorm.DB
	err = retry.Do(func() error {
		var openErr error
		gdb, openErr = openOnce(ctx, d)
		return openErr
	},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("database not ready, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// One writer at a time; a single connection also serializes transactions.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	slog.Info("Database connection established", "driver", cfg.Driver)

	store := &Store{DB: gdb}
	if cfg.Driver == "sqlite" {
		if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// openOnce 单次连接尝试；失败时关闭本次创建的连接池
func openOnce(ctx context.Context, d gorm.Dialector) (*gorm.DB, error) {
	gdb, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		// gorm.Open 自带的 ping 失败时连接池已创建
		if gdb != nil {
			if sqlDB, dbErr := gdb.DB(); dbErr == nil {
				sqlDB.Close()
			}
		}
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

func (s *Store) Migrate() error {
	err := s.DB.AutoMigrate(
		&models.User{},
		&models.Bootcamp{},
		&models.Project{},
		&models.Vote{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("Database migration completed")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close drains the pool. Called once during graceful shutdown.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
