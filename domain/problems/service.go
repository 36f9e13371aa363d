package problems

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/modelforge/domain/compiler"
	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/domain/solver"
	"github.com/emergent-company/modelforge/internal/jobs"
	"github.com/emergent-company/modelforge/pkg/apperror"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// Pool accepts detached solve tasks.
type Pool interface {
	Submit(name string, task jobs.Task) error
	Metrics() jobs.PoolMetrics
}

// Solver drives a created Run to its terminal state.
type Solver interface {
	Solve(ctx context.Context, problemID uuid.UUID) (*solver.Outcome, error)
}

// SolveResult is returned by Service.Solve.
type SolveResult struct {
	ProblemID uuid.UUID
	Hash      string
	Cached    bool
}

// Service compiles problems, deduplicates them by model hash and hands new
// Runs to the solve pool.
type Service struct {
	graphs   graph.Store
	compiler *compiler.Compiler
	cache    *runs.Cache
	store    runs.Store
	pool     Pool
	solver   Solver
	log      *slog.Logger
}

// NewService creates a new problems service.
func NewService(graphs graph.Store, comp *compiler.Compiler, cache *runs.Cache, store runs.Store, pool Pool, s Solver, log *slog.Logger) *Service {
	return &Service{
		graphs:   graphs,
		compiler: comp,
		cache:    cache,
		store:    store,
		pool:     pool,
		solver:   s,
		log:      log.With(logger.Scope("problems.svc")),
	}
}

// Solve compiles the graph for findTargets and returns the problem id. The
// solve itself runs in the background; the result is read with GetRun.
func (s *Service) Solve(ctx context.Context, findTargets []string) (*SolveResult, error) {
	if len(findTargets) == 0 {
		return nil, apperror.ErrEmptyFindTargets
	}

	g, err := graph.Load(ctx, s.graphs)
	if err != nil {
		return nil, err
	}

	m, err := s.compiler.Compile(ctx, g, findTargets)
	if errors.Is(err, compiler.ErrEmptyFindTargets) {
		return nil, apperror.ErrEmptyFindTargets
	}
	if err != nil {
		return nil, apperror.NewInternal("compile failed", err)
	}

	id, isNew, err := s.cache.LookupOrCreate(ctx, m.Hash, m.Text, m.State)
	if err != nil {
		return nil, err
	}
	result := &SolveResult{ProblemID: id, Hash: m.Hash, Cached: !isNew}
	if !isNew {
		s.log.Debug("reusing run", slog.String("problem_id", id.String()), slog.String("hash", m.Hash))
		return result, nil
	}

	err = s.pool.Submit("solve "+id.String(), func(ctx context.Context) error {
		_, err := s.solver.Solve(ctx, id)
		return err
	})
	if err != nil {
		s.abandon(ctx, id, err)
		return nil, apperror.NewInternal("solve pool unavailable", err)
	}

	s.log.Info("solve submitted",
		slog.String("problem_id", id.String()),
		slog.String("hash", m.Hash),
		slog.Int("instances", m.Index.Len()),
		slog.Int("skipped_nodes", m.Skipped),
	)
	return result, nil
}

// abandon closes a Run whose task could not be submitted, so a later
// request for the same model does not wait on it forever.
func (s *Service) abandon(ctx context.Context, id uuid.UUID, cause error) {
	now := time.Now().UTC()
	err := s.store.Update(context.WithoutCancel(ctx), id, runs.Patch{
		StartedAt: &now,
		EndedAt:   &now,
		Ran:       runs.Ptr(false),
		Error:     runs.Ptr(jobs.TruncateError(cause.Error())),
	})
	if err != nil {
		s.log.Error("failed to close unsubmitted run", slog.String("problem_id", id.String()), logger.Error(err))
	}
}

// GetRun returns the Run for a problem id.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*runs.Run, error) {
	run, err := s.store.FindByID(ctx, id)
	if errors.Is(err, runs.ErrRunNotFound) {
		return nil, apperror.ErrProblemNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// PoolMetrics returns the solve pool counters.
func (s *Service) PoolMetrics() jobs.PoolMetrics {
	return s.pool.Metrics()
}
