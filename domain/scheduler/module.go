package scheduler

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/internal/config"
	"github.com/emergent-company/modelforge/pkg/logger"
)

var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams are the dependencies of the maintenance tasks.
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	Store     runs.Store
	Cfg       *config.Config
	Log       *slog.Logger
}

// RegisterTasks schedules the stale run sweep and the workdir janitor.
func RegisterTasks(p TaskParams) error {
	sc := p.Cfg.Scheduler
	if !sc.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	sweep := NewStaleRunSweepTask(p.Store, sc.StaleAfter(), p.Log)
	if err := p.Scheduler.AddIntervalTask("stale_run_sweep", sc.StaleSweepInterval, sweep.Run); err != nil {
		p.Log.Error("failed to register stale run sweep", logger.Error(err))
	}

	janitor := NewWorkdirJanitorTask(p.Cfg.Solver.WorkdirRoot, sc.StaleAfter(), p.Log)
	if err := p.Scheduler.AddIntervalTask("workdir_janitor", sc.WorkdirJanitorEvery, janitor.Run); err != nil {
		p.Log.Error("failed to register workdir janitor", logger.Error(err))
	}

	p.Log.Info("registered scheduled tasks", slog.Any("tasks", p.Scheduler.ListTasks()))
	return nil
}

// RegisterSchedulerLifecycle starts and stops the scheduler with the app.
func RegisterSchedulerLifecycle(lc fx.Lifecycle, s *Scheduler, cfg *config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}
