package solver

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/internal/config"
)

var Module = fx.Module("solver",
	fx.Provide(
		NewBackendFromConfig,
		NewOrchestratorFromConfig,
	),
)

// NewBackendFromConfig selects the backend named by SOLVER_BACKEND.
func NewBackendFromConfig(cfg *config.Config, log *slog.Logger) (Backend, error) {
	b, err := NewBackend(cfg.Solver, ExecRunner{})
	if err != nil {
		return nil, err
	}
	log.Info("solver backend ready", slog.String("backend", b.Name()))
	return b, nil
}

// NewOrchestratorFromConfig builds the orchestrator from the solver settings.
func NewOrchestratorFromConfig(store runs.Store, backend Backend, cfg *config.Config, log *slog.Logger) *Orchestrator {
	return NewOrchestrator(store, backend, OptionsFromConfig(cfg.Solver), log)
}

// OptionsFromConfig maps solver settings to orchestrator options.
func OptionsFromConfig(cfg config.SolverConfig) Options {
	return Options{
		WorkdirRoot:    cfg.WorkdirRoot,
		AttemptTimeout: cfg.AttemptTimeout,
		MaxAttempts:    cfg.MaxAttempts,
		MaxSolutions:   cfg.MaxSolutions,
	}
}
