package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/internal/config"
	"github.com/emergent-company/modelforge/internal/database"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <snapshot.yaml>",
		Short: "Load a snapshot into the Postgres graph tables",
		Long: `Upsert every thing and connection of a snapshot into Postgres. Connection
settings come from POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER,
POSTGRES_PASSWORD and POSTGRES_DB.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := graph.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "snapshot ok: %d things, %d connections\n", len(snap.Things), len(snap.Connections))
				return nil
			}

			log := opts.logger()
			cfg, err := config.NewConfig(log)
			if err != nil {
				return err
			}
			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
			db := database.Wrap(sqldb, cfg.Database.QueryDebug, log)
			defer db.Close()

			if err := graph.NewRepository(db, log).Import(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(out, "imported %d things, %d connections\n", len(snap.Things), len(snap.Connections))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the snapshot without writing")
	return cmd
}
