package collection

import (
	"github.com/kolektahq/kolekta/internal/collection/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("collection",
	fx.Provide(repository.Provide),
)
