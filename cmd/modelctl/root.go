package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type globalOptions struct {
	output string
	debug  bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "modelctl",
		Short: "Compile and solve constraint models from graph snapshots",
		Long: `modelctl compiles a YAML graph snapshot into an Essence model and can run
the configured solver against it. Runs are kept in a local badger store so
that repeated solves of the same model are answered from the cache.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputText, outputJSON, outputYAML:
				return nil
			}
			return fmt.Errorf("unknown output format %q", opts.output)
		},
	}

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format (text, json, yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newCompileCommand(opts),
		newSolveCommand(opts),
		newShowCommand(opts),
		newImportCommand(opts),
	)
	return root
}

// logger returns a stderr logger; quiet unless --debug is set.
func (o *globalOptions) logger() *slog.Logger {
	if !o.debug {
		return logger.Discard()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// runView is the printable form of a Run.
type runView struct {
	ProblemID string   `json:"problemId" yaml:"problemId"`
	Hash      string   `json:"hash" yaml:"hash"`
	Status    string   `json:"status" yaml:"status"`
	Attempts  int      `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Solutions []string `json:"solutions" yaml:"solutions"`
}

func newRunView(r *runs.Run) runView {
	v := runView{
		ProblemID: r.ProblemID.String(),
		Hash:      r.Hash,
		Status:    string(r.Status()),
		Solutions: append([]string{}, r.ParsedSolutions...),
	}
	if r.Error != nil {
		v.Error = *r.Error
	}
	return v
}

func (o *globalOptions) print(w io.Writer, v runView) error {
	switch o.output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}

	fmt.Fprintf(w, "problem:   %s\n", v.ProblemID)
	fmt.Fprintf(w, "hash:      %s\n", v.Hash)
	fmt.Fprintf(w, "status:    %s\n", v.Status)
	if v.Attempts > 0 {
		fmt.Fprintf(w, "attempts:  %d\n", v.Attempts)
	}
	if v.Error != "" {
		fmt.Fprintf(w, "error:     %s\n", v.Error)
	}
	for i, s := range v.Solutions {
		fmt.Fprintf(w, "--- solution %d ---\n%s\n", i+1, s)
	}
	return nil
}
