package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var storeName string

	cmd := &cobra.Command{
		Use:   "delete [--store NAME] [INSTANCE...]",
		Short: "Delete saved settings and the data volumes they own",
		Long: `Deletes the saved settings of the named instances, or of every instance
in the store when none is named, and removes their data volumes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			deleted, err := application.Delete(cmd.Context(), storeName, args...)
			for _, name := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&storeName, "store", "", "settings store to delete from (defaults to defaultStore)")
	return cmd
}
