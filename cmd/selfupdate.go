package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the owner/name of the repository publishing releases.
// Release builds set it through main.repository.
var githubRepoSlug string

// SetRepository sets the GitHub repository self-update looks in.
func SetRepository(slug string) {
	githubRepoSlug = slug
}

// release is the part of a GitHub release self-update acts on.
type release struct {
	Version   string
	AssetURL  string
	AssetName string
}

// detectLatest and updateTo are variables so tests stay off the network.
var (
	detectLatest = func(ctx context.Context, slug string) (*release, bool, error) {
		latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(slug))
		if err != nil || !found {
			return nil, found, err
		}
		return &release{Version: latest.Version(), AssetURL: latest.AssetURL, AssetName: latest.AssetName}, true, nil
	}
	updateTo = func(ctx context.Context, assetURL, assetName string) error {
		exe, err := selfupdate.ExecutablePath()
		if err != nil {
			return fmt.Errorf("could not locate executable path: %w", err)
		}
		return selfupdate.UpdateTo(ctx, assetURL, assetName, exe)
	}
)

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update svcenv to the latest version",
		Long: `Checks for the latest release of svcenv on GitHub and updates the
current binary in place if a newer version is found.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	currentVersion := rootCmd.Version
	if currentVersion == "" || currentVersion == "dev" {
		return errors.New("cannot self-update a development version")
	}
	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("cannot self-update version %q: %w", currentVersion, err)
	}
	if githubRepoSlug == "" {
		return errors.New("self-update is not available: this build has no release repository")
	}

	ctx := context.Background()
	out := rootCmd.OutOrStdout()
	if cmd != nil {
		ctx = cmd.Context()
		out = cmd.OutOrStdout()
	}

	latest, found, err := detectLatest(ctx, githubRepoSlug)
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s could not be found", githubRepoSlug)
	}

	latestVersion, err := semver.NewVersion(latest.Version)
	if err != nil {
		return fmt.Errorf("release %q of %s is not a version: %w", latest.Version, githubRepoSlug, err)
	}
	if !latestVersion.GreaterThan(current) {
		fmt.Fprintf(out, "Current version (%s) is the latest\n", currentVersion)
		return nil
	}

	if err := updateTo(ctx, latest.AssetURL, latest.AssetName); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}
	fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version)
	return nil
}
