package solver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/internal/config"
)

// script writes an executable sh script standing in for a solver binary.
func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-solver")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const fakeConjure = `
for a in "$@"; do
  case "$a" in
    --output-directory=*) out="${a#--output-directory=}" ;;
  esac
done
mkdir -p "$out"
printf 'letting x be 1\n' > "$out/model000001.solution"
printf '{"x": 1}\n' > "$out/model000001.solution.json"
printf 'letting x be 2\n' > "$out/model000002.solution"
echo "Copying solution to: $out"
`

func TestConjure_ReadsSolutionFiles(t *testing.T) {
	workdir := t.TempDir()
	c := &Conjure{Bin: script(t, fakeConjure), MaxSolutions: 10, Runner: ExecRunner{}}

	res, err := c.Attempt(context.Background(), workdir, filepath.Join(workdir, ModelFile))
	require.NoError(t, err)
	assert.False(t, res.NoSolution)
	require.Len(t, res.Solutions, 2)
	assert.Equal(t, Solution{Raw: "letting x be 1\n", JSON: "{\"x\": 1}\n"}, res.Solutions[0])
	assert.Equal(t, Solution{Raw: "letting x be 2\n"}, res.Solutions[1])
	assert.Contains(t, res.Stdout, ConjureOutputDir)
}

func TestConjure_NoSolutionSentinel(t *testing.T) {
	c := &Conjure{Bin: script(t, `echo "No solutions found."`), Runner: ExecRunner{}}
	res, err := c.Attempt(context.Background(), t.TempDir(), "model.essence")
	require.NoError(t, err)
	assert.True(t, res.NoSolution)
	assert.Empty(t, res.Solutions)
}

func TestConjure_FailureWithoutStderrIsAnError(t *testing.T) {
	c := &Conjure{Bin: script(t, "exit 3"), Runner: ExecRunner{}}
	_, err := c.Attempt(context.Background(), t.TempDir(), "model.essence")
	assert.ErrorContains(t, err, "status 3")

	c = &Conjure{Bin: script(t, "echo 'parse error' >&2; exit 1"), Runner: ExecRunner{}}
	res, err := c.Attempt(context.Background(), t.TempDir(), "model.essence")
	require.NoError(t, err)
	assert.Equal(t, "parse error\n", res.Stderr)
}

func TestLocalSearch_ConvertsSolution(t *testing.T) {
	athanor := script(t, `
# --spec <model> --solution <out>
printf 'letting x be 7\n' > "$4"
echo "Solution written"
`)
	converter := script(t, `[ "$1" = pretty ] || exit 9; echo '{"x": 7}'`)
	l := &LocalSearch{Bin: athanor, ConverterBin: converter, Runner: ExecRunner{}}

	workdir := t.TempDir()
	res, err := l.Attempt(context.Background(), workdir, filepath.Join(workdir, ModelFile))
	require.NoError(t, err)
	require.Len(t, res.Solutions, 1)
	assert.Equal(t, "letting x be 7\n", res.Solutions[0].Raw)
	assert.Equal(t, "{\"x\": 7}\n", res.Solutions[0].JSON)
}

func TestLocalSearch_MissingSentinelMeansNoSolution(t *testing.T) {
	l := &LocalSearch{Bin: script(t, "echo searching"), ConverterBin: "false", Runner: ExecRunner{}}
	res, err := l.Attempt(context.Background(), t.TempDir(), "model.essence")
	require.NoError(t, err)
	assert.True(t, res.NoSolution)
}

func TestExecRunner(t *testing.T) {
	r := ExecRunner{WaitDelay: time.Second}

	out, err := r.Run(context.Background(), Command{Path: script(t, "echo out; echo err >&2; exit 4")})
	require.NoError(t, err)
	assert.Equal(t, Output{Stdout: "out\n", Stderr: "err\n", ExitCode: 4}, out)

	_, err = r.Run(context.Background(), Command{Path: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = r.Run(ctx, Command{Path: script(t, "sleep 30 & wait")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(config.SolverConfig{Backend: config.BackendConjure}, ExecRunner{})
	require.NoError(t, err)
	assert.Equal(t, config.BackendConjure, b.Name())

	b, err = NewBackend(config.SolverConfig{Backend: config.BackendLocalSearch}, ExecRunner{})
	require.NoError(t, err)
	assert.Equal(t, config.BackendLocalSearch, b.Name())

	_, err = NewBackend(config.SolverConfig{Backend: "minizinc"}, ExecRunner{})
	assert.Error(t, err)
}

func TestOrchestrator_WithScriptedConjure(t *testing.T) {
	h := newHarness(t)
	c := &Conjure{Bin: script(t, fakeConjure), MaxSolutions: 10, Runner: ExecRunner{}}

	out, run := h.solve(t, c, Options{MaxAttempts: 2})
	assert.Equal(t, runs.StatusSolved, out.Status)
	assert.Equal(t, 2, out.Solutions)
	assert.Equal(t, []string{"{\"x\": 1}\n", "letting x be 2\n"}, []string(run.ParsedSolutions))
}
