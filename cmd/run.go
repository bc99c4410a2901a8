package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"svcenv/internal/orchestrator"
)

func newRunCmd() *cobra.Command {
	var storeName string

	cmd := &cobra.Command{
		Use:   "run [--store NAME] COMMAND [ARGS...]",
		Short: "Start the configured services and run a command against them",
		Long: `Starts every configured service, waits until all of them are ready,
runs COMMAND with their connection data in the environment and stops the
services when it exits. svcenv exits with the command's status.`,
		Example: `  svcenv run go test ./...
  svcenv run --store ci -- make integration`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := application.Run(ctx, storeName, args)
			if err != nil {
				return err
			}
			if code != 0 {
				return &orchestrator.ExitError{Code: code}
			}
			return nil
		},
	}
	// Flags after COMMAND belong to COMMAND.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&storeName, "store", "", "settings store to use (defaults to defaultStore)")
	return cmd
}
