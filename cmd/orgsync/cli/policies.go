package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) policiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Track policy attachments edited in the directory tree",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "baseline ROOT_ID",
			Short: "Record the policies currently attached in the directory tree",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, cleanup, err := a.setup(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer cleanup()

				baseline, err := c.BaselineService.Capture(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "baseline captured for %d targets\n", len(baseline))
				return nil
			},
		},
		&cobra.Command{
			Use:   "make-migrations ROOT_ID",
			Short: "Append ATTACH_POLICY and DETACH_POLICY migrations for edits since the baseline",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, cleanup, err := a.setup(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer cleanup()

				created, err := c.BaselineService.MakeMigrations(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printCreated(cmd.OutOrStdout(), created)
				return nil
			},
		},
	)
	return cmd
}
