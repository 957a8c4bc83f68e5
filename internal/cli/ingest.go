package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"socialgraph/internal/social"
)

func newIngestCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load people and connections into the graph",
		Long:  `Reads the configured dataset, upserts every person and connects every pair whose endpoints both exist. Connections to unknown people are skipped and listed in the report.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, closeSrc, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer closeSrc()

			ds, err := src.Load(ctx)
			if err != nil {
				return err
			}

			svc, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			report, ingestErr := svc.Ingest(ctx, ds.People, ds.Connections)
			if report == nil {
				return ingestErr
			}

			// An aborted run still shows what it did before the failure.
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			if ingestErr != nil {
				return fmt.Errorf("ingestion run %s aborted: %w", report.RunID, ingestErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func printReport(w io.Writer, r *social.IngestReport) {
	fmt.Fprintf(w, "Run %s: %d people upserted, %d connections created", r.RunID, r.PeopleUpserted, r.EdgesCreated)
	if r.ExistingEdges > 0 {
		fmt.Fprintf(w, ", %d already present", r.ExistingEdges)
	}
	fmt.Fprintln(w)
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped connection #%d (%s, %s): %s [%s]\n",
			s.Index, s.Connection.A, s.Connection.B, s.Reason, strings.Join(s.Missing, ", "))
	}
	for _, rej := range r.Rejected {
		fmt.Fprintf(w, "  rejected %s #%d: %s\n", rej.Kind, rej.Index, rej.Reason)
	}
}
