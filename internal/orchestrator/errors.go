package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"svcenv/internal/containerizer"
)

// Phase names the stage of a run in which a service failed.
type Phase string

const (
	PullFailure      Phase = "pull"
	StartFailure     Phase = "start"
	ReadinessFailure Phase = "readiness"
	SetupFailure     Phase = "setup"
)

// ServiceError reports which service failed, in which phase, and whatever
// diagnostic output the engine produced.
type ServiceError struct {
	Phase   Phase
	Service string
	Output  string
	Err     error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("service %s: %s failed: %v", e.Service, e.Phase, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" && !strings.Contains(msg, out) {
		msg += "\n" + indent(out, "    ")
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newServiceError(phase Phase, service string, err error) *ServiceError {
	se := &ServiceError{Phase: phase, Service: service, Err: err}
	var cmdErr *containerizer.CommandError
	if errors.As(err, &cmdErr) {
		se.Output = cmdErr.Output
	}
	return se
}

// ExitError carries the exit code of the child process.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
