package main

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/account"
	"github.com/KristianHans04/ScraperX-sub001/internal/apikey"
	"github.com/KristianHans04/ScraperX-sub001/internal/clock"
	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	"github.com/KristianHans04/ScraperX-sub001/internal/creditpack"
	"github.com/KristianHans04/ScraperX-sub001/internal/events"
	"github.com/KristianHans04/ScraperX-sub001/internal/invoice"
	"github.com/KristianHans04/ScraperX-sub001/internal/ledger"
	"github.com/KristianHans04/ScraperX-sub001/internal/migration"
	"github.com/KristianHans04/ScraperX-sub001/internal/observability/logger"
	"github.com/KristianHans04/ScraperX-sub001/internal/observability/tracing"
	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure"
	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/sweep"
	"github.com/KristianHans04/ScraperX-sub001/internal/seed"
	"github.com/KristianHans04/ScraperX-sub001/internal/server"
	"github.com/KristianHans04/ScraperX-sub001/internal/subscription"
	"github.com/KristianHans04/ScraperX-sub001/internal/webhook"
	"github.com/KristianHans04/ScraperX-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB, cfg.DatabaseDriver); err != nil {
				return err
			}
			if cfg.Bootstrap.EnsureDemoAccount {
				return seed.EnsureDemoAccount(conn, node)
			}
			return nil
		}),
		events.Module,
		account.Module,
		apikey.Module,
		ledger.Module,
		invoice.Module,
		subscription.Module,
		creditpack.Module,
		paymentfailure.Module,
		sweep.Module,
		webhook.Module,
		server.Module,
	)
	app.Run()
}
