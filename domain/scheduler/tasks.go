package scheduler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/domain/solver"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// Interrupted is the error written on Runs closed by the stale sweep.
const Interrupted = "interrupted"

// StaleRunSweepTask closes Runs that were started but never finished, which
// happens when the process died while their solve task was running.
type StaleRunSweepTask struct {
	store      runs.Store
	staleAfter time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewStaleRunSweepTask creates the sweep.
func NewStaleRunSweepTask(store runs.Store, staleAfter time.Duration, log *slog.Logger) *StaleRunSweepTask {
	return &StaleRunSweepTask{
		store:      store,
		staleAfter: staleAfter,
		log:        log.With(logger.Scope("scheduler.stale_runs")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run marks every stale open Run as errored.
func (t *StaleRunSweepTask) Run(ctx context.Context) error {
	now := t.now()
	open, err := t.store.ListOpen(ctx, now.Add(-t.staleAfter))
	if err != nil {
		return err
	}

	closed := 0
	for _, run := range open {
		err := t.store.Update(ctx, run.ProblemID, runs.Patch{
			EndedAt: runs.Ptr(now),
			Ran:     runs.Ptr(true),
			Solved:  runs.Ptr(false),
			Error:   runs.Ptr(Interrupted),
		})
		if err != nil {
			t.log.Warn("failed to close stale run", slog.String("problem_id", run.ProblemID.String()), logger.Error(err))
			continue
		}
		closed++
	}
	if closed > 0 {
		t.log.Info("closed stale runs", slog.Int("count", closed))
	}
	return nil
}

// WorkdirJanitorTask removes solver work directories left behind by a
// crash. Live solves remove their own directory.
type WorkdirJanitorTask struct {
	root      string
	olderThan time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewWorkdirJanitorTask creates the janitor for root; an empty root means
// the system temp directory.
func NewWorkdirJanitorTask(root string, olderThan time.Duration, log *slog.Logger) *WorkdirJanitorTask {
	if root == "" {
		root = os.TempDir()
	}
	return &WorkdirJanitorTask{
		root:      root,
		olderThan: olderThan,
		log:       log.With(logger.Scope("scheduler.workdir_janitor")),
		now:       time.Now,
	}
}

// Run deletes work directories not modified within olderThan.
func (t *WorkdirJanitorTask) Run(ctx context.Context) error {
	entries, err := os.ReadDir(t.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	cutoff := t.now().Add(-t.olderThan)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !e.IsDir() || !strings.HasPrefix(e.Name(), solver.WorkdirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(t.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			t.log.Warn("failed to remove workdir", slog.String("path", path), logger.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		t.log.Info("removed orphaned workdirs", slog.Int("count", removed))
	}
	return nil
}
