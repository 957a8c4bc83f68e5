package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"socialgraph/internal/database/relational"
	"socialgraph/internal/dataset"
)

func newDatasetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect and convert upstream datasets",
	}
	cmd.AddCommand(newDatasetSnapshotCmd(a))
	return cmd
}

func newDatasetSnapshotCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy the JSON people and connections exports into DuckDB tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			src := dataset.JSONFiles{PeoplePath: a.cfg.Dataset.PeopleFile, ConnectionsPath: a.cfg.Dataset.ConnectionsFile}
			ds, err := src.Load(ctx)
			if err != nil {
				return err
			}

			client, err := relational.NewDuckDBClient(ctx, out)
			if err != nil {
				return err
			}
			defer client.Close()

			sink, err := relational.NewDuckDBSource(client, a.tables())
			if err != nil {
				return err
			}
			if err := sink.CreateTables(ctx); err != nil {
				return err
			}
			if err := sink.Store(ctx, ds); err != nil {
				return err
			}

			badPeople, badConns := ds.Malformed()
			people, conns := len(ds.People)-badPeople, len(ds.Connections)-badConns
			a.log.Info("dataset snapshot written",
				zap.String("path", out),
				zap.Int("people", people),
				zap.Int("connections", conns),
				zap.Int("malformed", badPeople+badConns))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d people and %d connections to %s\n", people, conns, out)
			if badPeople+badConns > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Left out %d malformed records\n", badPeople+badConns)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "DuckDB file to write")
	return cmd
}
