package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *App) ledgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the migration ledger",
	}

	var filter string
	list := &cobra.Command{
		Use:   "list ROOT_ID",
		Short: "List migrations with their recorded status",
		Example: `  orgsync ledger list r-abcd --filter 'status == "FAILED"'
  orgsync ledger list r-abcd --filter 'migration_type == "ACCOUNT_MOVE" && params.account_id == "111111111111"'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := a.setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			migrations, err := c.LedgerService.List(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tMESSAGE")
			for _, m := range migrations {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Status, m.Message)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&filter, "filter", "", "CEL expression over id, extension, migration_type, status, message and params")

	cmd.AddCommand(list)
	return cmd
}
