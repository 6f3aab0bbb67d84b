package migration

import (
	"github.com/smallbiznis/workbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		log.Info("database migrated",
			zap.String("dialect", conn.Dialector.Name()),
			zap.String("environment", cfg.Environment),
		)
		return nil
	}),
)
