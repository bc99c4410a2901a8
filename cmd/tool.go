package cmd

import (
	"github.com/spf13/cobra"

	"svcenv/internal/orchestrator"
)

func newToolCmd() *cobra.Command {
	var storeName string

	cmd := &cobra.Command{
		Use:   "tool [--store NAME] INSTANCE TOOL [ARGS...]",
		Short: "Run a client tool against a service's saved settings",
		Example: `  svcenv tool db psql
  svcenv tool db pg_dump --schema-only`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			code, err := application.Tool(cmd.Context(), storeName, args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			if code != 0 {
				return &orchestrator.ExitError{Code: code}
			}
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&storeName, "store", "", "settings store to use (defaults to defaultStore)")
	return cmd
}
