package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"svcenv/pkg/logging"
)

// For mocking in tests
var (
	execCommand  = exec.Command
	signalNotify = signal.Notify
)

// forwardedSignals are relayed to the child. SIGINT and SIGQUIT are not:
// the terminal already delivers them to the whole foreground process group.
var forwardedSignals = []os.Signal{syscall.SIGTERM, syscall.SIGHUP}

// ChildRunner launches the target command and waits for it.
type ChildRunner interface {
	RunChild(ctx context.Context, argv []string, env []string) (int, error)
}

// ChildRunnerFunc adapts a function to ChildRunner.
type ChildRunnerFunc func(ctx context.Context, argv []string, env []string) (int, error)

func (f ChildRunnerFunc) RunChild(ctx context.Context, argv []string, env []string) (int, error) {
	return f(ctx, argv, env)
}

// ExecChildRunner runs the command as a subprocess sharing svcenv's
// terminal. Nil streams default to the process's own.
type ExecChildRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunChild starts argv and returns its exit code. Once started the child
// decides when the run ends; ctx cancellation is not turned into a kill.
func (r *ExecChildRunner) RunChild(ctx context.Context, argv []string, env []string) (int, error) {
	if len(argv) == 0 {
		return 1, errors.New("no command given")
	}
	if err := ctx.Err(); err != nil {
		return 1, err
	}

	cmd := execCommand(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if r.Stdin != nil {
		cmd.Stdin = r.Stdin
	}
	if r.Stdout != nil {
		cmd.Stdout = r.Stdout
	}
	if r.Stderr != nil {
		cmd.Stderr = r.Stderr
	}

	sigs := make(chan os.Signal, 4)
	signalNotify(sigs, forwardedSignals...)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("start %s: %w", argv[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigs:
			logging.Debug("Orchestrator", "Forwarding %v to %s", sig, argv[0])
			if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logging.Warn("Orchestrator", "Could not forward %v to %s: %v", sig, argv[0], err)
			}
		case err := <-done:
			return exitCode(err)
		}
	}
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1, err
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}
