package runs

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/emergent-company/modelforge/internal/config"
)

var Module = fx.Module("runs",
	fx.Provide(
		NewStore,
		NewCache,
	),
)

// NewStore returns the Run store selected by RUN_STORE.
func NewStore(lc fx.Lifecycle, cfg *config.Config, db bun.IDB, log *slog.Logger) (Store, error) {
	if cfg.RunStore.Driver != config.RunStoreBadger {
		return NewRepository(db, log), nil
	}

	bdb, err := OpenBadger(BadgerOptions{Path: cfg.RunStore.BadgerPath, Logger: log})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing badger run store")
			return bdb.Close()
		},
	})
	log.Info("using badger run store", slog.String("path", cfg.RunStore.BadgerPath))
	return NewBadgerStore(bdb, log), nil
}
