package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"svcenv/internal/view"
)

// clipboardWrite is a variable so tests can capture copies.
var clipboardWrite = clipboard.WriteAll

func newShowCmd() *cobra.Command {
	var storeName, copyInstance string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved connection settings of a store",
		Long: `Prints the connection data saved for every configured service in the
store, together with the environment variables a run would export.
With --copy the connection url of one instance is put on the clipboard.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			scope, instances, err := application.Show(cmd.Context(), storeName)
			if err != nil {
				return err
			}
			if copyInstance != "" {
				return copyURL(cmd, instances, copyInstance)
			}
			return view.RenderShow(cmd.OutOrStdout(), scope.Store, instances)
		},
	}
	cmd.Flags().StringVar(&storeName, "store", "", "settings store to show (defaults to defaultStore)")
	cmd.Flags().StringVar(&copyInstance, "copy", "", "copy the url of this instance to the clipboard")
	return cmd
}

func copyURL(cmd *cobra.Command, instances []view.InstanceView, name string) error {
	for _, iv := range instances {
		if iv.Name != name {
			continue
		}
		url := iv.Data["url"]
		if url == "" {
			return fmt.Errorf("%s has no saved url, run it first", name)
		}
		if err := clipboardWrite(url); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Copied the url of %s to the clipboard\n", name)
		return nil
	}
	return fmt.Errorf("unknown instance %q", name)
}
