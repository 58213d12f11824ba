package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/kolektahq/kolekta/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open connects gorm using the configured driver. Postgres is the
// production target; sqlite backs local development and tests.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DB.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}

	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	return conn, nil
}

// ForUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
// sqlite serializes writers already, so the clause is skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
