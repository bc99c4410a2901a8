package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"svcenv/internal/app"
	"svcenv/internal/orchestrator"
)

var (
	configPath string
	debug      bool
	engine     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "svcenv",
	Short: "Run commands against throwaway backing services",
	Long: `svcenv starts the containers a command depends on (databases, caches),
waits until they are usable, exports their connection data as environment
variables, runs the command and tears everything down afterwards.

Connection settings can be kept per project and store so that data
survives between runs.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. a failing service or child process)
	SilenceUsage: true,
	// Errors are printed by Execute so a child's exit status stays quiet.
	SilenceErrors: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "svcenv version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status and prints it
// unless it only carries a child's status.
func exitCode(err error) int {
	var exitErr *orchestrator.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func newApplication() (*app.Application, error) {
	return app.NewApplication(app.NewConfig(configPath, debug, engine))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "use this configuration file instead of the user and project files")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "container engine binary (docker or podman)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStoresCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newToolCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newServicesCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
