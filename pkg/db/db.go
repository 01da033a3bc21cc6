// Package db opens the gorm database handle for the billing core.
package db

import (
	"context"
	"errors"
	"strings"

	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database. Postgres is the production
// driver; sqlite serves local development and tests.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	dsn := strings.TrimSpace(cfg.DatabaseDSN)

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var conn *gorm.DB
	var err error
	switch driver {
	case "postgres", "":
		if dsn == "" {
			return nil, errors.New("missing_database_dsn")
		}
		conn, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		conn, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return nil, errors.New("unsupported_database_driver")
	}
	if err != nil {
		return nil, err
	}

	log.Info("database connected", zap.String("driver", driver))
	return conn, nil
}

// Module provides the database handle and closes it on shutdown.
var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
	}),
)
