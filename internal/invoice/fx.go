package invoice

import (
	"github.com/kolektahq/kolekta/internal/invoice/repository"
	"github.com/kolektahq/kolekta/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
