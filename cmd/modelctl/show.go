package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newShowCommand(opts *globalOptions) *cobra.Command {
	var (
		store storeOptions
		model bool
	)

	cmd := &cobra.Command{
		Use:   "show <problemId>",
		Short: "Print a stored Run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid problem id %q: %w", args[0], err)
			}

			st, closeStore, err := store.open(opts)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			run, err := st.FindByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if model {
				fmt.Fprint(cmd.OutOrStdout(), run.Model)
				return nil
			}
			return opts.print(cmd.OutOrStdout(), newRunView(run))
		},
	}

	cmd.Flags().BoolVar(&model, "model", false, "print the compiled model text")
	store.register(cmd)
	return cmd
}
