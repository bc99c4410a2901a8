// Package tools launches client programs (psql, redis-cli, ...) against the
// settings a previous run persisted for a service instance.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	"svcenv/internal/services"
	"svcenv/internal/store"
	"svcenv/pkg/logging"
)

// ErrServiceNotYetRun is returned when an instance has no persisted settings.
var ErrServiceNotYetRun = errors.New("service has not been run yet")

// For mocking in tests
var execCommandContext = exec.CommandContext

// RecordLoader is the read side of the settings store.
type RecordLoader interface {
	Load(project, store, name string) (map[string]string, error)
}

// Executor runs a resolved tool command and returns its exit code.
type Executor interface {
	Execute(ctx context.Context, argv []string, env []string) (int, error)
}

// Runner resolves and launches tools for instances in one store scope.
type Runner struct {
	Store RecordLoader
	Scope store.Scope
	Exec  Executor
}

// Run launches tool for the named instance. spec must be a freshly built
// spec of the instance's variant; the persisted record is loaded into it.
// Nothing is executed when the record is missing or the tool is unknown.
func (r *Runner) Run(ctx context.Context, inst *services.Instance, tool string, extraArgs []string) (int, error) {
	rec, err := r.Store.Load(r.Scope.Project, r.Scope.Store, inst.Name)
	if errors.Is(err, store.ErrNotFound) {
		return 1, fmt.Errorf("%w: no saved settings for %s in store %s, run it first", ErrServiceNotYetRun, inst.Name, r.Scope.Store)
	}
	if err != nil {
		return 1, err
	}
	if err := inst.Spec.Load(services.Record(rec)); err != nil {
		return 1, fmt.Errorf("load settings for %s: %w", inst.Name, err)
	}

	t, err := services.FindTool(inst.Name, inst.Spec, tool)
	if err != nil {
		return 1, err
	}
	cmd, err := t.Command(inst.Spec.ServiceData(), extraArgs)
	if err != nil {
		return 1, fmt.Errorf("prepare %s for %s: %w", tool, inst.Name, err)
	}
	if cmd.Cleanup != nil {
		defer cmd.Cleanup()
	}
	if len(cmd.Argv) == 0 {
		return 1, fmt.Errorf("tool %s for %s produced an empty command", tool, inst.Name)
	}

	logging.Debug("Tools", "Running %s for %s", cmd.Argv[0], inst.Name)
	return r.executor().Execute(ctx, cmd.Argv, mergeEnv(os.Environ(), cmd.Env))
}

func (r *Runner) executor() Executor {
	if r.Exec == nil {
		return &ProcessExecutor{}
	}
	return r.Exec
}

func mergeEnv(base []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// ProcessExecutor runs the tool attached to the given streams, defaulting
// to the process's own.
type ProcessExecutor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (p *ProcessExecutor) Execute(ctx context.Context, argv []string, env []string) (int, error) {
	cmd := execCommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if p.Stdin != nil {
		cmd.Stdin = p.Stdin
	}
	if p.Stdout != nil {
		cmd.Stdout = p.Stdout
	}
	if p.Stderr != nil {
		cmd.Stderr = p.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("run %s: %w", argv[0], err)
}
