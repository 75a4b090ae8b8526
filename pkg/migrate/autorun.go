package migrate

import (
	"context"
	"fmt"

	"github.com/reddragons/storefront-backend/pkg/config"
	"github.com/reddragons/storefront-backend/pkg/db"
	"github.com/reddragons/storefront-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot, only in dev and only
// when the auto-migrate flag is on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	m, err := New(sqlDB, client.Driver(), fsys, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "migrate.autorun.start")
	if err := m.Run(ctx, CmdUp); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun.done")
	return nil
}
