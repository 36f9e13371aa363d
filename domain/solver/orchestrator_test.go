package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/pkg/logger"
)

type stubBackend struct {
	mu       sync.Mutex
	calls    int
	workdirs []string
	attempt  func(ctx context.Context, n int) (*AttemptResult, error)
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Attempt(ctx context.Context, workdir, modelPath string) (*AttemptResult, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.workdirs = append(s.workdirs, workdir)
	s.mu.Unlock()
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model not written: %w", err)
	}
	return s.attempt(ctx, n)
}

func solutions(from, to int) []Solution {
	var out []Solution
	for i := from; i <= to; i++ {
		out = append(out, Solution{
			Raw:  fmt.Sprintf("letting x be %d\n", i),
			JSON: fmt.Sprintf(`{"x": %d}`, i),
		})
	}
	return out
}

type harness struct {
	store *runs.MemoryStore
	root  string
	id    uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: runs.NewMemoryStore(), root: t.TempDir(), id: uuid.New()}
	require.NoError(t, h.store.Insert(context.Background(), &runs.Run{
		ProblemID: h.id,
		Hash:      "hash",
		Model:     "language Essence 1.3\n",
	}))
	return h
}

func (h *harness) solve(t *testing.T, b Backend, opts Options) (*Outcome, *runs.Run) {
	t.Helper()
	opts.WorkdirRoot = h.root
	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 10
	}
	if opts.MaxSolutions == 0 {
		opts.MaxSolutions = 10
	}
	o := NewOrchestrator(h.store, b, opts, logger.Discard())
	out, err := o.Solve(context.Background(), h.id)
	require.NoError(t, err)

	run, err := h.store.FindByID(context.Background(), h.id)
	require.NoError(t, err)

	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "work directory must be removed")
	return out, run
}

func TestSolve_NoSolutionOnEveryAttempt(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(context.Context, int) (*AttemptResult, error) {
		return &AttemptResult{Stdout: "No solutions found.\n", NoSolution: true}, nil
	}}

	out, run := h.solve(t, b, Options{})

	assert.Equal(t, 10, b.calls)
	assert.Equal(t, runs.StatusUnsolved, out.Status)
	assert.Equal(t, 10, out.Attempts)
	assert.Equal(t, runs.StatusUnsolved, run.Status())
	assert.True(t, run.Ran)
	assert.False(t, run.Solved)
	require.NotNil(t, run.Error)
	assert.Equal(t, runs.NoSolutions, *run.Error)
	assert.Contains(t, run.Stdout, "--- attempt 10 ---\nNo solutions found.\n")
	assert.Empty(t, run.RawSolutions)
}

func TestSolve_TenSolutionsOnFirstAttempt(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(context.Context, int) (*AttemptResult, error) {
		return &AttemptResult{Stdout: "solved\n", Solutions: solutions(1, 12)}, nil
	}}

	out, run := h.solve(t, b, Options{})

	assert.Equal(t, 1, b.calls)
	assert.Equal(t, runs.StatusSolved, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 10, out.Solutions)
	assert.True(t, run.Solved)
	assert.Nil(t, run.Error)
	assert.Len(t, run.RawSolutions, 10)
	assert.Len(t, run.ParsedSolutions, 10)
	assert.Equal(t, `{"x": 1}`, run.ParsedSolutions[0])
	assert.Equal(t, "letting x be 10\n", run.RawSolutions[9])
	require.NotNil(t, run.EndedAt)
	require.NotNil(t, run.StartedAt)
	assert.False(t, run.EndedAt.Before(*run.StartedAt))
}

func TestSolve_ProcessFailureOnFirstAttempt(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(context.Context, int) (*AttemptResult, error) {
		return &AttemptResult{Stdout: "partial\n"}, errors.New("exec: \"conjure\": executable file not found")
	}}

	out, run := h.solve(t, b, Options{})

	assert.Equal(t, 1, b.calls)
	assert.Equal(t, runs.StatusErrored, out.Status)
	assert.Equal(t, runs.StatusErrored, run.Status())
	assert.True(t, run.Ran)
	assert.False(t, run.Solved)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "executable file not found")
	assert.Equal(t, "--- attempt 1 ---\npartial\n", run.Stdout)
}

func TestSolve_StderrIsRecordedAndRetried(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(_ context.Context, n int) (*AttemptResult, error) {
		if n == 1 {
			return &AttemptResult{Stderr: "warning: savilerow ran out of memory", Solutions: solutions(1, 1)}, nil
		}
		return &AttemptResult{Solutions: solutions(1, 3)}, nil
	}}

	out, run := h.solve(t, b, Options{MaxSolutions: 3})

	assert.Equal(t, 2, b.calls)
	assert.Equal(t, runs.StatusSolved, out.Status)
	assert.Equal(t, 3, out.Solutions)
	assert.Contains(t, run.Stderr, "--- attempt 1 ---\nwarning: savilerow ran out of memory\n")
}

func TestSolve_DeduplicatesByExactText(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(_ context.Context, n int) (*AttemptResult, error) {
		switch n {
		case 1:
			return &AttemptResult{Solutions: solutions(1, 2)}, nil
		case 2:
			return &AttemptResult{Solutions: []Solution{
				// exact repeats of attempt 1
				{Raw: "letting x be 1\n", JSON: `{"x": 1}`},
				// same JSON, new raw text
				{Raw: "letting x be 2\n\n", JSON: `{"x": 2}`},
			}}, nil
		default:
			return &AttemptResult{Solutions: solutions(3, 3)}, nil
		}
	}}

	out, run := h.solve(t, b, Options{MaxAttempts: 3})

	assert.Equal(t, 3, b.calls)
	assert.Equal(t, 3, out.Solutions)
	assert.Equal(t, []string{`{"x": 1}`, `{"x": 2}`, `{"x": 3}`}, []string(run.ParsedSolutions))
	assert.Equal(t, []string{
		"letting x be 1\n",
		"letting x be 2\n",
		"letting x be 2\n\n",
		"letting x be 3\n",
	}, []string(run.RawSolutions))
}

func TestSolve_FormattingVariantsAreDistinct(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(context.Context, int) (*AttemptResult, error) {
		return &AttemptResult{Solutions: []Solution{
			{Raw: "letting a be 1\nletting b be 2\n", JSON: `{"a": 1, "b": 2}`},
			{Raw: "letting b be 2\nletting a be 1\n", JSON: `{"b": 2, "a": 1}`},
			{Raw: "letting a be 1\nletting  b be 2\n"},
		}}, nil
	}}

	out, run := h.solve(t, b, Options{MaxAttempts: 1})

	assert.Equal(t, 3, out.Solutions)
	assert.Len(t, run.RawSolutions, 3)
	assert.Equal(t, []string{
		`{"a": 1, "b": 2}`,
		`{"b": 2, "a": 1}`,
		"letting a be 1\nletting  b be 2\n",
	}, []string(run.ParsedSolutions))
}

func TestSolve_StopsAtMaxDistinctSolutions(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(context.Context, int) (*AttemptResult, error) {
		return &AttemptResult{Solutions: solutions(1, 12)}, nil
	}}

	out, run := h.solve(t, b, Options{})

	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 10, out.Solutions)
	assert.Len(t, run.ParsedSolutions, 10)
}

func TestSolve_AttemptTimeoutMovesOn(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(ctx context.Context, n int) (*AttemptResult, error) {
		if n == 1 {
			<-ctx.Done()
			return &AttemptResult{}, ctx.Err()
		}
		return &AttemptResult{Solutions: solutions(1, 1)}, nil
	}}

	out, run := h.solve(t, b, Options{AttemptTimeout: 20 * time.Millisecond, MaxAttempts: 2})

	assert.Equal(t, 2, b.calls)
	assert.Equal(t, runs.StatusSolved, out.Status)
	assert.Contains(t, run.Stderr, "attempt timed out")
}

func TestSolve_EachRunGetsItsOwnWorkdir(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{attempt: func(context.Context, int) (*AttemptResult, error) {
		return &AttemptResult{NoSolution: true}, nil
	}}

	h.solve(t, b, Options{MaxAttempts: 2})
	require.Len(t, b.workdirs, 2)
	assert.Equal(t, b.workdirs[0], b.workdirs[1])
	assert.Contains(t, b.workdirs[0], WorkdirPrefix+h.id.String())
}

func TestSolve_DoesNotRestartARun(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(context.Background(), h.id, runs.Patch{StartedAt: runs.Ptr(time.Now())}))
	b := &stubBackend{attempt: func(context.Context, int) (*AttemptResult, error) {
		t.Fatal("backend must not be called")
		return nil, nil
	}}

	o := NewOrchestrator(h.store, b, Options{WorkdirRoot: h.root, AttemptTimeout: time.Second, MaxAttempts: 1, MaxSolutions: 1}, logger.Discard())
	out, err := o.Solve(context.Background(), h.id)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusStarted, out.Status)
	assert.Equal(t, 0, b.calls)
}

func TestSolve_UnknownRun(t *testing.T) {
	o := NewOrchestrator(runs.NewMemoryStore(), &stubBackend{}, Options{}, logger.Discard())
	_, err := o.Solve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, runs.ErrRunNotFound)
}

func TestParsedForm(t *testing.T) {
	assert.Equal(t, `{"b":1, "a":2}`, parsedForm(Solution{Raw: "x", JSON: `{"b":1, "a":2}`}))
	assert.Equal(t, " letting   x be 1 ", parsedForm(Solution{Raw: " letting   x be 1 "}))
}
