package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/pkg/logger"
	"github.com/emergent-company/modelforge/pkg/tracing"
)

// WorkdirPrefix starts the name of every scoped work directory.
const WorkdirPrefix = "modelforge-run-"

// ModelFile is the name of the model inside a work directory.
const ModelFile = "model.essence"

// Options bound a solve.
type Options struct {
	WorkdirRoot    string
	AttemptTimeout time.Duration
	MaxAttempts    int
	MaxSolutions   int
}

// Orchestrator drives one Run from Started to a terminal state. It is the
// only writer of a Run after creation.
type Orchestrator struct {
	store   runs.Store
	backend Backend
	opts    Options
	log     *slog.Logger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store runs.Store, backend Backend, opts Options, log *slog.Logger) *Orchestrator {
	if opts.WorkdirRoot == "" {
		opts.WorkdirRoot = os.TempDir()
	}
	return &Orchestrator{
		store:   store,
		backend: backend,
		opts:    opts,
		log:     log.With(logger.Scope("solver.orchestrator")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Outcome summarizes a finished solve.
type Outcome struct {
	Status    runs.Status
	Attempts  int
	Solutions int
	Error     string
}

// solveState accumulates attempt output for one Run.
type solveState struct {
	stdout, stderr strings.Builder
	seenRaw        map[string]struct{}
	seenParsed     map[string]struct{}
	raw, parsed    []string
}

// Solve runs the Run to completion. Process failures are persisted on the
// Run, not returned; the error result is for store failures only.
func (o *Orchestrator) Solve(ctx context.Context, problemID uuid.UUID) (*Outcome, error) {
	ctx, span := tracing.Start(ctx, "solver.solve",
		attribute.String("modelforge.problem_id", problemID.String()),
		attribute.String("modelforge.backend", o.backend.Name()),
	)
	defer span.End()
	log := o.log.With(slog.String("problem_id", problemID.String()))

	run, err := o.store.FindByID(ctx, problemID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if run.Status() != runs.StatusCreated {
		log.Warn("run already started, not solving again", slog.String("status", string(run.Status())))
		return &Outcome{Status: run.Status()}, nil
	}

	started := o.now()
	if err := o.store.Update(ctx, problemID, runs.Patch{StartedAt: &started}); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	st := &solveState{
		seenRaw:    make(map[string]struct{}),
		seenParsed: make(map[string]struct{}),
	}
	attempts, solveErr := o.attempts(ctx, log, run, st)

	outcome := &Outcome{Attempts: attempts, Solutions: len(st.parsed)}
	patch := runs.Patch{
		EndedAt:         runs.Ptr(o.now()),
		Ran:             runs.Ptr(true),
		Solved:          runs.Ptr(solveErr == nil && len(st.parsed) > 0),
		RawSolutions:    append([]string{}, st.raw...),
		ParsedSolutions: append([]string{}, st.parsed...),
		Stdout:          runs.Ptr(st.stdout.String()),
		Stderr:          runs.Ptr(st.stderr.String()),
	}
	switch {
	case solveErr != nil:
		outcome.Status = runs.StatusErrored
		outcome.Error = solveErr.Error()
		patch.Error = runs.Ptr(outcome.Error)
		tracing.RecordError(span, solveErr)
		log.Error("solve failed", slog.Int("attempts", attempts), logger.Error(solveErr))
	case len(st.parsed) == 0:
		outcome.Status = runs.StatusUnsolved
		outcome.Error = runs.NoSolutions
		patch.Error = runs.Ptr(runs.NoSolutions)
		log.Info("no solutions", slog.Int("attempts", attempts))
	default:
		outcome.Status = runs.StatusSolved
		log.Info("solved", slog.Int("attempts", attempts), slog.Int("solutions", len(st.parsed)))
	}
	runsTotal.WithLabelValues(string(outcome.Status)).Inc()
	span.SetAttributes(
		attribute.String("modelforge.outcome", string(outcome.Status)),
		attribute.Int("modelforge.attempts", attempts),
	)

	// the terminal write must land even if the pool is shutting down
	if err := o.store.Update(context.WithoutCancel(ctx), problemID, patch); err != nil {
		log.Error("failed to persist outcome", logger.Error(err))
		return outcome, err
	}
	return outcome, nil
}

// attempts runs the attempt loop inside a scoped work directory that is
// removed on every exit path.
func (o *Orchestrator) attempts(ctx context.Context, log *slog.Logger, run *runs.Run, st *solveState) (int, error) {
	if err := os.MkdirAll(o.opts.WorkdirRoot, 0o750); err != nil {
		return 0, fmt.Errorf("create workdir root: %w", err)
	}
	workdir, err := os.MkdirTemp(o.opts.WorkdirRoot, WorkdirPrefix+run.ProblemID.String()+"-")
	if err != nil {
		return 0, fmt.Errorf("create workdir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workdir); err != nil {
			log.Warn("failed to remove workdir", slog.String("workdir", workdir), logger.Error(err))
		}
	}()

	modelPath := filepath.Join(workdir, ModelFile)
	if err := os.WriteFile(modelPath, []byte(run.Model), 0o640); err != nil {
		return 0, fmt.Errorf("write model: %w", err)
	}

	backend := o.backend.Name()
	for n := 1; n <= o.opts.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, fmt.Errorf("interrupted: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
		start := time.Now()
		res, err := o.backend.Attempt(attemptCtx, workdir, modelPath)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()
		attemptDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

		if res != nil {
			appendSection(&st.stdout, n, res.Stdout)
			appendSection(&st.stderr, n, res.Stderr)
		}

		switch {
		case timedOut:
			attemptsTotal.WithLabelValues(backend, "timeout").Inc()
			appendSection(&st.stderr, n, fmt.Sprintf("attempt timed out after %s\n", o.opts.AttemptTimeout))
			log.Warn("solver attempt timed out", slog.Int("attempt", n), slog.Duration("timeout", o.opts.AttemptTimeout))
			continue
		case err != nil:
			attemptsTotal.WithLabelValues(backend, "failed").Inc()
			return n, err
		case res.NoSolution:
			attemptsTotal.WithLabelValues(backend, "no_solution").Inc()
			log.Debug("no solution", slog.Int("attempt", n))
			continue
		case strings.TrimSpace(res.Stderr) != "":
			attemptsTotal.WithLabelValues(backend, "stderr").Inc()
			log.Warn("solver wrote to stderr, retrying", slog.Int("attempt", n), slog.String("stderr", firstLine(res.Stderr)))
			continue
		}

		attemptsTotal.WithLabelValues(backend, "solutions").Inc()
		for _, sol := range res.Solutions {
			st.add(sol)
			if len(st.parsed) >= o.opts.MaxSolutions {
				return n, nil
			}
		}
	}
	return o.opts.MaxAttempts, nil
}

// add records sol in two independent sets keyed on exact text: raw output,
// and the parsed form (JSON, or raw when there is none).
func (st *solveState) add(sol Solution) {
	if _, dup := st.seenRaw[sol.Raw]; !dup {
		st.seenRaw[sol.Raw] = struct{}{}
		st.raw = append(st.raw, sol.Raw)
	}
	parsed := parsedForm(sol)
	if _, dup := st.seenParsed[parsed]; !dup {
		st.seenParsed[parsed] = struct{}{}
		st.parsed = append(st.parsed, parsed)
	}
}

// parsedForm is the JSON companion of a solution, or its raw text.
func parsedForm(sol Solution) string {
	if sol.JSON != "" {
		return sol.JSON
	}
	return sol.Raw
}

func appendSection(b *strings.Builder, attempt int, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(b, "--- attempt %d ---\n%s", attempt, text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteByte('\n')
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
