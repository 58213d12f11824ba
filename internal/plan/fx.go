package plan

import (
	"github.com/kolektahq/kolekta/internal/plan/repository"
	"github.com/kolektahq/kolekta/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
