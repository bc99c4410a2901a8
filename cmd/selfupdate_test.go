package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// stubRelease replaces the GitHub calls for the duration of a test.
type stubRelease struct {
	latest   *release
	found    bool
	err      error
	detected int
	gotCtx   context.Context
	updated  []string
}

func (s *stubRelease) install(t *testing.T, slug, version string) {
	t.Helper()
	origDetect, origUpdate := detectLatest, updateTo
	origSlug, origVersion := githubRepoSlug, rootCmd.Version
	t.Cleanup(func() {
		detectLatest, updateTo = origDetect, origUpdate
		githubRepoSlug, rootCmd.Version = origSlug, origVersion
	})

	githubRepoSlug = slug
	rootCmd.Version = version
	detectLatest = func(ctx context.Context, slug string) (*release, bool, error) {
		s.detected++
		s.gotCtx = ctx
		return s.latest, s.found, s.err
	}
	updateTo = func(ctx context.Context, assetURL, assetName string) error {
		s.updated = append(s.updated, assetURL, assetName)
		return nil
	}
}

func TestRunSelfUpdate_RefusesBeforeDetecting(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		version string
		want    string
	}{
		{"dev build", "acme/svcenv", "dev", "cannot self-update a development version"},
		{"unset version", "acme/svcenv", "", "cannot self-update a development version"},
		{"not a version", "acme/svcenv", "main-abc123", `cannot self-update version "main-abc123"`},
		{"no repository", "", "1.0.0", "no release repository"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRelease{found: true, latest: &release{Version: "9.9.9"}}
			stub.install(t, tt.slug, tt.version)

			err := runSelfUpdate(nil, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Expected error containing %q, got %v", tt.want, err)
			}
			if stub.detected != 0 {
				t.Errorf("Expected no release lookup, got %d", stub.detected)
			}
		})
	}
}

func TestRunSelfUpdate_NilCommandUsesBackgroundContext(t *testing.T) {
	stub := &stubRelease{found: true, latest: &release{Version: "1.0.0"}}
	stub.install(t, "acme/svcenv", "1.0.0")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	if err := runSelfUpdate(nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.gotCtx == nil {
		t.Fatal("Expected a non-nil context to be passed to the lookup")
	}
	if !strings.Contains(buf.String(), "Current version (1.0.0) is the latest") {
		t.Errorf("Unexpected output %q", buf.String())
	}
	if len(stub.updated) != 0 {
		t.Errorf("Expected no update, got %v", stub.updated)
	}
}

func TestRunSelfUpdate_InstallsNewerRelease(t *testing.T) {
	stub := &stubRelease{found: true, latest: &release{
		Version:   "1.10.0",
		AssetURL:  "https://example.invalid/svcenv_linux_amd64.tar.gz",
		AssetName: "svcenv_linux_amd64.tar.gz",
	}}
	stub.install(t, "acme/svcenv", "v1.9.2")

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	if err := runSelfUpdate(cmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.updated) != 2 || stub.updated[1] != "svcenv_linux_amd64.tar.gz" {
		t.Errorf("Expected the release asset to be installed, got %v", stub.updated)
	}
	if !strings.Contains(buf.String(), "Successfully updated to version 1.10.0") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestRunSelfUpdate_LookupFailures(t *testing.T) {
	stub := &stubRelease{err: errors.New("rate limited")}
	stub.install(t, "acme/svcenv", "1.0.0")
	if err := runSelfUpdate(nil, nil); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Expected lookup error, got %v", err)
	}

	stub.err, stub.found = nil, false
	if err := runSelfUpdate(nil, nil); err == nil || !strings.Contains(err.Error(), "acme/svcenv could not be found") {
		t.Errorf("Expected not-found error, got %v", err)
	}
}
