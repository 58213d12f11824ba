package migration

import (
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kolektahq/kolekta/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("migration",
	fx.Invoke(Run),
)

func Run(cfg config.Config, log *zap.Logger) error {
	if cfg.DB.Driver != "postgres" {
		return errors.New("migrations target postgres; sqlite schemas come from AutoMigrate in tests")
	}

	sqlDB, err := sql.Open("pgx", cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}
