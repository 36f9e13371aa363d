package problems

import (
	"log/slog"

	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"github.com/emergent-company/modelforge/domain/compiler"
	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/domain/solver"
	"github.com/emergent-company/modelforge/internal/config"
	"github.com/emergent-company/modelforge/internal/jobs"
)

// Module provides the problems domain
var Module = fx.Module("problems",
	fx.Provide(
		newService,
		NewSolveLimiter,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

type serviceParams struct {
	fx.In
	Graphs       graph.Store
	Compiler     *compiler.Compiler
	Cache        *runs.Cache
	Store        runs.Store
	Pool         *jobs.Pool
	Orchestrator *solver.Orchestrator
	Log          *slog.Logger
}

func newService(p serviceParams) *Service {
	return NewService(p.Graphs, p.Compiler, p.Cache, p.Store, p.Pool, p.Orchestrator, p.Log)
}

// NewSolveLimiter returns the submission limiter, or nil when
// SOLVE_RATE_LIMIT is 0.
func NewSolveLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.SolveRateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.SolveRateLimit), max(cfg.SolveRateBurst, 1))
}
