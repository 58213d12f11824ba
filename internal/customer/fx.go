package customer

import (
	"github.com/kolektahq/kolekta/internal/customer/repository"
	"github.com/kolektahq/kolekta/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
