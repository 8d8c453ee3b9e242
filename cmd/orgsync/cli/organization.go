package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lyzr/orgsync/cmd/orgsync/service"
	"github.com/lyzr/orgsync/common/models"
)

func (a *App) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-organization ROLE_ARN ROOT_ID",
		Short: "Write the live organization under ROOT_ID to the environment directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleARN, rootID := args[0], args[1]
			c, cleanup, err := a.setup(cmd.Context(), true, a.remoteOptions(roleARN)...)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := c.ImportService.Import(cmd.Context(), rootID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d nodes, %d policies, %d delegated administrator accounts\n",
				result.RootID, result.Nodes, result.Policies, result.DelegatedAccounts)
			return nil
		},
	}
}

func (a *App) makeMigrationsCommand() *cobra.Command {
	var against string

	cmd := &cobra.Command{
		Use:   "make-migrations ROLE_ARN ROOT_ID",
		Short: "Append migrations for every difference between the directory tree and the organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleARN, rootID := args[0], args[1]
			mode, err := service.ParseAgainst(against)
			if err != nil {
				return err
			}

			c, cleanup, err := a.setup(cmd.Context(), true, a.remoteOptions(roleARN)...)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := c.ReconcileService.MakeMigrations(cmd.Context(), rootID, mode)
			if err != nil {
				return err
			}
			printCreated(cmd.OutOrStdout(), created)
			return nil
		},
	}
	cmd.Flags().StringVar(&against, "against", string(service.AgainstLive), "compare with the live organization (live) or the captured state file (state)")
	return cmd
}

func (a *App) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate ROLE_ARN ROOT_ID",
		Short: "Apply every migration of ROOT_ID that has not been applied yet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleARN, rootID := args[0], args[1]
			c, cleanup, err := a.setup(cmd.Context(), true, a.remoteOptions(roleARN)...)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := c.MigrateService.Migrate(cmd.Context(), rootID)
			if result != nil {
				printOutcomes(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
}

func printCreated(w io.Writer, created []*models.Migration) {
	if len(created) == 0 {
		fmt.Fprintln(w, "no changes")
		return
	}
	for _, m := range created {
		fmt.Fprintf(w, "created %s\n", m.ID)
	}
}

// printOutcomes writes one line per migration and a summary line
func printOutcomes(w io.Writer, result *service.MigrateResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	skipped := 0
	for _, o := range result.Outcomes {
		note := o.Message
		if o.Skipped {
			skipped++
			note = "already run"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.ID, o.Status, note)
	}
	tw.Flush()

	fmt.Fprintf(w, "applied %d, failed %d, errored %d, skipped %d\n",
		result.Count(models.StatusApplied),
		result.Count(models.StatusFailed),
		result.Count(models.StatusErrored),
		skipped,
	)
}
