package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/clock"
	"github.com/kolektahq/kolekta/internal/collection"
	"github.com/kolektahq/kolekta/internal/config"
	"github.com/kolektahq/kolekta/internal/customer"
	"github.com/kolektahq/kolekta/internal/invoice"
	"github.com/kolektahq/kolekta/internal/observability"
	"github.com/kolektahq/kolekta/internal/plan"
	"github.com/kolektahq/kolekta/internal/server"
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

		plan.Module,
		customer.Module,
		invoice.Module,
		collection.Module,
		subscription.Module,

		server.Module,
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
