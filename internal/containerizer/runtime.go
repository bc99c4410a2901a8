package containerizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// Runtime abstracts the container engine operations svcenv needs.
type Runtime interface {
	PullImage(ctx context.Context, ref ImageRef) error
	StartContainer(ctx context.Context, config ContainerConfig) (Container, error)
	StopContainer(ctx context.Context, containerName string) error
	Exec(ctx context.Context, containerName string, args ...string) ([]byte, error)
	RemoveVolume(ctx context.Context, volume string) error
}

// Container is the handle of a started container. For the CLI engines it
// is the foreground `run` process, see Process.
type Container interface {
	// Done is closed once the container process has exited.
	Done() <-chan struct{}
	// Err is the exit error, meaningful after Done is closed.
	Err() error
	// Output is the tail of what the container printed.
	Output() string
	// Kill terminates the container process. Safe to call more than once.
	Kill() error
}

// ImageRef is a repository plus tag, e.g. postgres:16.
type ImageRef struct {
	Repository string
	Tag        string
}

// String renders the reference the way the engine CLI expects it.
func (r ImageRef) String() string {
	if r.Tag == "" {
		return r.Repository
	}
	return r.Repository + ":" + r.Tag
}

// WithTag returns a copy of r with the tag replaced when tag is non-empty.
func (r ImageRef) WithTag(tag string) ImageRef {
	if tag != "" {
		r.Tag = tag
	}
	return r
}

// Validate checks that the reference is a well formed repository:tag.
func (r ImageRef) Validate() error {
	if r.Repository == "" {
		return fmt.Errorf("image repository is empty")
	}
	if _, err := name.NewTag(r.String(), name.WeakValidation); err != nil {
		return fmt.Errorf("invalid image reference %q: %w", r.String(), err)
	}
	return nil
}

// ParseImageRef splits "repo[:tag]" into an ImageRef, falling back to defaultTag.
func ParseImageRef(s, defaultTag string) (ImageRef, error) {
	opts := []name.Option{name.WeakValidation}
	if defaultTag != "" {
		opts = append(opts, name.WithDefaultTag(defaultTag))
	}
	tag, err := name.NewTag(s, opts...)
	if err != nil {
		return ImageRef{}, fmt.Errorf("invalid image reference %q: %w", s, err)
	}
	repo := s
	// Keep the user's spelling of the repository, only strip an explicit tag.
	if i := strings.LastIndex(s, ":"); i > strings.LastIndex(s, "/") {
		repo = s[:i]
	}
	return ImageRef{Repository: repo, Tag: tag.TagStr()}, nil
}

// ContainerConfig describes one `run` invocation.
type ContainerConfig struct {
	Name       string
	Image      string
	Ports      []string          // e.g. "127.0.0.1:5432:5432"
	Volumes    []string          // e.g. "svcenv-data:/var/lib/postgresql/data"
	Env        map[string]string // container environment
	Entrypoint []string
	Options    []string // extra raw engine options
	Command    []string
}

// Validate reports configuration errors before the engine is invoked.
func (c ContainerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("container name is required")
	}
	if c.Image == "" {
		return fmt.Errorf("container image is required")
	}
	return nil
}

// ContainerName derives a container name that is unique across concurrent
// svcenv processes on the same host.
func ContainerName(pid, index int) string {
	return fmt.Sprintf("svcenv-%d-%d", pid, index)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
