package containerizer

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"

	"svcenv/pkg/logging"
)

// For mocking in tests
var (
	execCommand        = exec.Command
	execCommandContext = exec.CommandContext
)

// DefaultBinary is the engine CLI used when none is configured.
const DefaultBinary = "docker"

var (
	_ Runtime   = (*DockerRuntime)(nil)
	_ Container = (*Process)(nil)
)

// DockerRuntime drives a docker compatible engine (docker, podman) through
// its command line interface.
type DockerRuntime struct {
	Binary string
}

// NewDockerRuntime returns a runtime for the given binary, defaulting to docker.
func NewDockerRuntime(binary string) *DockerRuntime {
	if binary == "" {
		binary = DefaultBinary
	}
	return &DockerRuntime{Binary: binary}
}

func (d *DockerRuntime) binary() string {
	if d.Binary == "" {
		return DefaultBinary
	}
	return d.Binary
}

// PullImage fetches ref into the local image cache.
func (d *DockerRuntime) PullImage(ctx context.Context, ref ImageRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	args := []string{"pull", ref.String()}
	logging.Debug("Containerizer", "%s %s", d.binary(), strings.Join(args, " "))

	cmd := execCommandContext(ctx, d.binary(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &CommandError{Args: append([]string{d.binary()}, args...), Output: string(out), Err: err}
	}
	return nil
}

// StartContainer launches `run` in the foreground and returns its handle.
// The returned process lives until it exits or is killed; ctx only bounds
// the launch itself.
func (d *DockerRuntime) StartContainer(ctx context.Context, config ContainerConfig) (Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args, err := buildRunArgs(config)
	if err != nil {
		return nil, err
	}
	logging.Debug("Containerizer", "%s %s", d.binary(), strings.Join(args, " "))

	proc := newProcess(execCommand(d.binary(), args...))
	if err := proc.start(); err != nil {
		return nil, &CommandError{Args: append([]string{d.binary()}, args...), Err: err}
	}
	return proc, nil
}

// StopContainer asks the engine to gracefully stop a container by name.
func (d *DockerRuntime) StopContainer(ctx context.Context, containerName string) error {
	args := []string{"stop", containerName}
	out, err := execCommandContext(ctx, d.binary(), args...).CombinedOutput()
	if err != nil {
		return &CommandError{Args: append([]string{d.binary()}, args...), Output: string(out), Err: err}
	}
	return nil
}

// Exec runs a command inside a running container and returns its combined output.
func (d *DockerRuntime) Exec(ctx context.Context, containerName string, args ...string) ([]byte, error) {
	full := append([]string{"exec", containerName}, args...)
	out, err := execCommandContext(ctx, d.binary(), full...).CombinedOutput()
	if err != nil {
		return out, &CommandError{Args: append([]string{d.binary()}, full...), Output: string(out), Err: err}
	}
	return out, nil
}

// RemoveVolume deletes a named volume. Missing volumes are not an error.
func (d *DockerRuntime) RemoveVolume(ctx context.Context, volume string) error {
	args := []string{"volume", "rm", "-f", volume}
	out, err := execCommandContext(ctx, d.binary(), args...).CombinedOutput()
	if err != nil {
		return &CommandError{Args: append([]string{d.binary()}, args...), Output: string(out), Err: err}
	}
	return nil
}

// buildRunArgs renders the `run` argument vector for config.
func buildRunArgs(config ContainerConfig) ([]string, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	args := []string{"run", "--rm", "--name", config.Name}

	for _, spec := range config.Ports {
		published, err := publishArgs(spec)
		if err != nil {
			return nil, err
		}
		args = append(args, published...)
	}

	for _, vol := range config.Volumes {
		parts := strings.SplitN(vol, ":", 2)
		if len(parts) == 2 {
			vol = expandPath(parts[0]) + ":" + parts[1]
		}
		args = append(args, "-v", vol)
	}

	// Sorted so the argument vector is deterministic.
	keys := make([]string, 0, len(config.Env))
	for k := range config.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, config.Env[k]))
	}

	if len(config.Entrypoint) > 0 {
		args = append(args, "--entrypoint", config.Entrypoint[0])
	}

	args = append(args, config.Options...)
	args = append(args, config.Image)

	if len(config.Entrypoint) > 1 {
		args = append(args, config.Entrypoint[1:]...)
	}
	args = append(args, config.Command...)
	return args, nil
}

// publishArgs validates a port spec and renders it as -p flags.
func publishArgs(spec string) ([]string, error) {
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid port mapping %q: %w", spec, err)
	}
	var args []string
	for _, m := range mappings {
		var b strings.Builder
		if m.Binding.HostIP != "" {
			b.WriteString(m.Binding.HostIP)
			b.WriteString(":")
		}
		if m.Binding.HostPort != "" || m.Binding.HostIP != "" {
			b.WriteString(m.Binding.HostPort)
			b.WriteString(":")
		}
		b.WriteString(m.Port.Port())
		b.WriteString("/")
		b.WriteString(m.Port.Proto())
		args = append(args, "-p", b.String())
	}
	return args, nil
}
