package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var databasesCmd = &cobra.Command{
	Use:     "databases",
	Aliases: []string{"dbs"},
	Short:   "List databases available in DB_FOLDER",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := svc.Service.Databases()
		if err != nil {
			return fmt.Errorf("list databases: %w", err)
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No databases found.")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}
