package main

import (
	"github.com/spf13/cobra"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/domain/solver"
	"github.com/emergent-company/modelforge/internal/config"
)

type storeOptions struct {
	path     string
	inMemory bool
}

func (s *storeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.path, "store", "./data/runs", "badger run store directory")
	cmd.Flags().BoolVar(&s.inMemory, "in-memory", false, "use a throwaway in-memory run store")
}

// open returns the badger store and its close func.
func (s *storeOptions) open(opts *globalOptions) (*runs.BadgerStore, func() error, error) {
	log := opts.logger()
	db, err := runs.OpenBadger(runs.BadgerOptions{Path: s.path, InMemory: s.inMemory, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	return runs.NewBadgerStore(db, log), db.Close, nil
}

func newSolveCommand(opts *globalOptions) *cobra.Command {
	var (
		find  []string
		store storeOptions
	)

	cmd := &cobra.Command{
		Use:   "solve <snapshot.yaml>",
		Short: "Compile a snapshot and run the solver in the foreground",
		Long: `Compile a snapshot and run the configured solver until it finishes. Solver
settings come from the same environment variables as the server
(SOLVER_BACKEND, CONJURE_BIN, SOLVER_MAX_ATTEMPTS, ...). A model that was
already solved is printed from the run store without invoking the solver.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger()
			cfg, err := config.NewConfig(log)
			if err != nil {
				return err
			}

			m, err := compileSnapshot(cmd, opts, args[0], find)
			if err != nil {
				return err
			}

			st, closeStore, err := store.open(opts)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			ctx := cmd.Context()
			id, _, err := runs.NewCache(st, log).LookupOrCreate(ctx, m.Hash, m.Text, m.State)
			if err != nil {
				return err
			}

			backend, err := solver.NewBackend(cfg.Solver, solver.ExecRunner{})
			if err != nil {
				return err
			}
			orch := solver.NewOrchestrator(st, backend, solver.OptionsFromConfig(cfg.Solver), log)
			outcome, err := orch.Solve(ctx, id)
			if err != nil {
				return err
			}

			run, err := st.FindByID(ctx, id)
			if err != nil {
				return err
			}
			v := newRunView(run)
			v.Attempts = outcome.Attempts
			return opts.print(cmd.OutOrStdout(), v)
		},
	}

	cmd.Flags().StringSliceVarP(&find, "find", "f", nil, "find target (thing id or name), repeatable")
	_ = cmd.MarkFlagRequired("find")
	store.register(cmd)
	return cmd
}
