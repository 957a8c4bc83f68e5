package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var params map[string]string

	cmd := &cobra.Command{
		Use:     "query <cypher>",
		Short:   "Run a parameterized Cypher query and print the records as JSON",
		Example: `  socialgraph query 'MATCH (p:Person {username: $name}) RETURN p.id AS id' --param name=Alice`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			svc, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			bound := make(map[string]any, len(params))
			for k, v := range params {
				bound[k] = v
			}
			records, err := svc.ExecuteQuery(ctx, args[0], bound)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}

	cmd.Flags().StringToStringVar(&params, "param", nil, "query parameter as name=value (repeatable)")
	return cmd
}
