package solver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emergent-company/modelforge/internal/config"
)

// Solution is one solver answer: the raw solver text and its JSON form.
type Solution struct {
	Raw  string
	JSON string
}

// AttemptResult is the outcome of one solver invocation.
type AttemptResult struct {
	Stdout     string
	Stderr     string
	NoSolution bool
	Solutions  []Solution
}

// Backend runs one solve attempt of the model at modelPath inside workdir.
// An error means the process layer failed and the Run must be aborted.
type Backend interface {
	Name() string
	Attempt(ctx context.Context, workdir, modelPath string) (*AttemptResult, error)
}

// NewBackend builds the backend selected by cfg.
func NewBackend(cfg config.SolverConfig, runner Runner) (Backend, error) {
	switch cfg.Backend {
	case config.BackendConjure:
		return &Conjure{Bin: cfg.ConjureBin, ExtraArgs: cfg.ExtraArgs, MaxSolutions: cfg.MaxSolutions, Runner: runner}, nil
	case config.BackendLocalSearch:
		return &LocalSearch{Bin: cfg.AthanorBin, ConverterBin: cfg.ConverterBin, ExtraArgs: cfg.ExtraArgs, Runner: runner}, nil
	}
	return nil, fmt.Errorf("unknown solver backend %q", cfg.Backend)
}

// ConjureOutputDir is the subdirectory of the workdir conjure writes into.
const ConjureOutputDir = "conjure-output"

// ConjureNoSolution is printed by conjure when the model is unsatisfiable.
const ConjureNoSolution = "No solutions found."

// Conjure drives the discrete constraint toolchain. Solutions are read from
// *.solutions files with their *.solutions.json companions.
type Conjure struct {
	Bin          string
	ExtraArgs    []string
	MaxSolutions int
	Runner       Runner
}

func (c *Conjure) Name() string { return config.BackendConjure }

func (c *Conjure) Attempt(ctx context.Context, workdir, modelPath string) (*AttemptResult, error) {
	outDir := filepath.Join(workdir, ConjureOutputDir)
	if err := os.RemoveAll(outDir); err != nil {
		return nil, fmt.Errorf("clear %s: %w", outDir, err)
	}

	args := []string{"solve", "--output-directory=" + outDir, "--output-format=json"}
	if c.MaxSolutions > 0 {
		args = append(args, fmt.Sprintf("--number-of-solutions=%d", c.MaxSolutions))
	}
	args = append(args, c.ExtraArgs...)
	args = append(args, modelPath)

	out, err := c.Runner.Run(ctx, Command{Path: c.Bin, Args: args, Dir: workdir})
	res := &AttemptResult{Stdout: out.Stdout, Stderr: out.Stderr}
	if err != nil {
		return res, err
	}
	if strings.Contains(out.Stdout, ConjureNoSolution) {
		res.NoSolution = true
		return res, nil
	}
	if out.ExitCode != 0 && strings.TrimSpace(out.Stderr) == "" {
		return res, fmt.Errorf("%s exited with status %d", c.Bin, out.ExitCode)
	}

	files, err := filepath.Glob(filepath.Join(outDir, "*.solution*"))
	if err != nil {
		return res, err
	}
	for _, f := range files {
		if strings.HasSuffix(f, ".json") {
			continue
		}
		raw, err := os.ReadFile(f)
		if err != nil {
			return res, fmt.Errorf("read solution: %w", err)
		}
		sol := Solution{Raw: string(raw)}
		if js, err := os.ReadFile(f + ".json"); err == nil {
			sol.JSON = string(js)
		}
		res.Solutions = append(res.Solutions, sol)
	}
	if len(res.Solutions) == 0 {
		res.NoSolution = true
	}
	return res, nil
}

// LocalSearchSolved is printed by the local search solver when it wrote a solution.
const LocalSearchSolved = "Solution written"

// LocalSearchSolutionFile is the name of the single solution file.
const LocalSearchSolutionFile = "solution.solution"

// LocalSearch drives the local search solver, which writes one solution
// file that a converter turns into JSON.
type LocalSearch struct {
	Bin          string
	ConverterBin string
	ExtraArgs    []string
	Runner       Runner
}

func (l *LocalSearch) Name() string { return config.BackendLocalSearch }

func (l *LocalSearch) Attempt(ctx context.Context, workdir, modelPath string) (*AttemptResult, error) {
	outPath := filepath.Join(workdir, LocalSearchSolutionFile)
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("clear %s: %w", outPath, err)
	}

	args := append([]string{"--spec", modelPath, "--solution", outPath}, l.ExtraArgs...)
	out, err := l.Runner.Run(ctx, Command{Path: l.Bin, Args: args, Dir: workdir})
	res := &AttemptResult{Stdout: out.Stdout, Stderr: out.Stderr}
	if err != nil {
		return res, err
	}
	if !strings.Contains(out.Stdout, LocalSearchSolved) {
		if out.ExitCode != 0 && strings.TrimSpace(out.Stderr) == "" {
			return res, fmt.Errorf("%s exited with status %d", l.Bin, out.ExitCode)
		}
		res.NoSolution = true
		return res, nil
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return res, fmt.Errorf("read solution: %w", err)
	}

	conv, err := l.Runner.Run(ctx, Command{
		Path: l.ConverterBin,
		Args: []string{"pretty", "--output-format=json", outPath},
		Dir:  workdir,
	})
	res.Stderr += conv.Stderr
	if err != nil {
		return res, fmt.Errorf("convert solution: %w", err)
	}
	if conv.ExitCode != 0 {
		return res, fmt.Errorf("%s exited with status %d while converting", l.ConverterBin, conv.ExitCode)
	}
	res.Solutions = []Solution{{Raw: string(raw), JSON: conv.Stdout}}
	return res, nil
}
