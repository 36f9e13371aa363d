package jobs

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/modelforge/internal/config"
)

// Module provides the shared solve pool and stops it with the app.
var Module = fx.Module("jobs",
	fx.Provide(NewSolvePool),
)

// NewSolvePool builds the pool used for detached solves.
func NewSolvePool(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) *Pool {
	pool := NewPool(PoolConfig{Name: "solve", Concurrency: cfg.Solver.PoolConcurrency}, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pool.Stop(ctx)
		},
	})
	return pool
}
