package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/clock"
	"github.com/kolektahq/kolekta/internal/collection"
	"github.com/kolektahq/kolekta/internal/config"
	"github.com/kolektahq/kolekta/internal/customer"
	"github.com/kolektahq/kolekta/internal/invoice"
	"github.com/kolektahq/kolekta/internal/observability"
	"github.com/kolektahq/kolekta/internal/plan"
	"github.com/kolektahq/kolekta/internal/redis"
	"github.com/kolektahq/kolekta/internal/scheduler"
	"github.com/kolektahq/kolekta/internal/subscription"
	"github.com/kolektahq/kolekta/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redis.Module,

		plan.Module,
		customer.Module,
		invoice.Module,
		collection.Module,
		subscription.Module,

		scheduler.Module,
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
	})
}
