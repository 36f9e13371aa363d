package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emergent-company/modelforge/domain/compiler"
	"github.com/emergent-company/modelforge/domain/graph"
)

func newCompileCommand(opts *globalOptions) *cobra.Command {
	var (
		find     []string
		hashOnly bool
		state    bool
	)

	cmd := &cobra.Command{
		Use:   "compile <snapshot.yaml>",
		Short: "Print the Essence model for a snapshot",
		Example: `  modelctl compile shelves.yaml --find Shelf
  modelctl compile shelves.yaml --find Shelf --find Bin --hash`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := compileSnapshot(cmd, opts, args[0], find)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case hashOnly:
				fmt.Fprintln(out, m.Hash)
			case state:
				data, err := compiler.EncodeState(m.State)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			default:
				fmt.Fprint(out, m.Text)
				fmt.Fprintf(cmd.ErrOrStderr(), "hash: %s\n", m.Hash)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&find, "find", "f", nil, "find target (thing id or name), repeatable")
	cmd.Flags().BoolVar(&hashOnly, "hash", false, "print only the model hash")
	cmd.Flags().BoolVar(&state, "state", false, "print the encoded problem state instead of the model")
	cmd.MarkFlagsMutuallyExclusive("hash", "state")
	_ = cmd.MarkFlagRequired("find")
	return cmd
}

func compileSnapshot(cmd *cobra.Command, opts *globalOptions, path string, find []string) (*compiler.Model, error) {
	snap, err := graph.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return compiler.NewCompiler(opts.logger()).Compile(cmd.Context(), snap.Graph(), find)
}
