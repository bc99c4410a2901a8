package cmd

import (
	"github.com/spf13/cobra"

	"svcenv/internal/view"
)

func newStoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the settings stores of the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			stores, current, err := application.Stores()
			if err != nil {
				return err
			}
			return view.RenderStores(cmd.OutOrStdout(), stores, current)
		},
	}
}
