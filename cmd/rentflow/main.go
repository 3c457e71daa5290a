package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/rentstack/rentflow/internal/apikey"
	"github.com/rentstack/rentflow/internal/audit"
	"github.com/rentstack/rentflow/internal/clock"
	"github.com/rentstack/rentflow/internal/config"
	"github.com/rentstack/rentflow/internal/household"
	"github.com/rentstack/rentflow/internal/ledger"
	"github.com/rentstack/rentflow/internal/migration"
	"github.com/rentstack/rentflow/internal/observability"
	"github.com/rentstack/rentflow/internal/payment"
	"github.com/rentstack/rentflow/internal/scheduler"
	"github.com/rentstack/rentflow/internal/seed"
	"github.com/rentstack/rentflow/internal/server"
	"github.com/rentstack/rentflow/internal/workflow"
	"github.com/rentstack/rentflow/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if cfg.EnsureDefaultOrg {
				return seed.EnsureDefaultOrgAndAdmin(conn, cfg)
			}
			return seed.EnsureDefaultOrg(conn)
		}),

		apikey.Module,
		audit.Module,
		ledger.Module,
		workflow.Module,
		payment.Module,
		household.Module,
		scheduler.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
