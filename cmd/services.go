package cmd

import (
	"github.com/spf13/cobra"

	"svcenv/internal/app"
	"svcenv/internal/config"
	"svcenv/internal/store"
	"svcenv/internal/view"
)

func newServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the available service variants and their tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The catalog does not depend on the configuration.
			application := app.New(config.GetDefaultConfig(), nil, store.New(""))
			return view.RenderServices(cmd.OutOrStdout(), application.Services())
		},
	}
}
