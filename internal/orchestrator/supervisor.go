package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"svcenv/internal/containerizer"
	"svcenv/internal/services"
	"svcenv/pkg/logging"
)

var errTornDown = errors.New("torn down")

// validTransitions is the supervisor state machine. Stopped is reachable
// from every state once a container exists and is handled by Teardown.
var validTransitions = map[services.ServiceState][]services.ServiceState{
	services.StatePending:           {services.StateStarting},
	services.StateStarting:          {services.StateAwaitingReadiness, services.StateStartFailed},
	services.StateAwaitingReadiness: {services.StateReady, services.StateReadinessFailed, services.StateStartFailed},
	services.StateReady:             {services.StateSettingUp},
	services.StateSettingUp:         {services.StateRunning, services.StateSetupFailed},
}

// Supervisor owns one container for the length of a run.
type Supervisor struct {
	inst          *services.Instance
	engine        containerizer.Runtime
	containerName string
	persist       func(services.Record) error
	onStateChange services.StateChangeCallback

	mu        sync.Mutex
	state     services.ServiceState
	container containerizer.Container
	stopping  bool

	running      chan struct{}
	teardownOnce sync.Once
}

// NewSupervisor prepares a supervisor in the Pending state. persist may be
// nil when no settings store is active.
func NewSupervisor(inst *services.Instance, engine containerizer.Runtime, containerName string, persist func(services.Record) error) *Supervisor {
	return &Supervisor{
		inst:          inst,
		engine:        engine,
		containerName: containerName,
		persist:       persist,
		state:         services.StatePending,
		running:       make(chan struct{}),
	}
}

// SetStateChangeCallback registers a callback invoked on every transition.
func (s *Supervisor) SetStateChangeCallback(cb services.StateChangeCallback) {
	s.mu.Lock()
	s.onStateChange = cb
	s.mu.Unlock()
}

// Name is the instance name.
func (s *Supervisor) Name() string {
	return s.inst.Name
}

// ContainerName is the engine-level name of the container.
func (s *Supervisor) ContainerName() string {
	return s.containerName
}

// State returns the current state.
func (s *Supervisor) State() services.ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running is closed once the instance reached Running.
func (s *Supervisor) Running() <-chan struct{} {
	return s.running
}

// Run drives the instance from Pending to Running. Any error is returned
// as a *ServiceError unless ctx was cancelled underneath it.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.transition(services.StateStarting, nil); err != nil {
		return err
	}

	config := s.inst.Spec.Configure(containerizer.ContainerConfig{
		Name:  s.containerName,
		Image: s.inst.Image.String(),
	})
	container, err := s.engine.StartContainer(ctx, config)
	if err != nil {
		return s.fail(services.StateStartFailed, newServiceError(StartFailure, s.inst.Name, err))
	}
	if !s.attach(container) {
		return errTornDown
	}
	logging.Info("Supervisor", "Started %s as %s (%s)", s.inst.Name, s.containerName, config.Image)

	if err := s.transition(services.StateAwaitingReadiness, nil); err != nil {
		return err
	}
	if err := s.awaitReadiness(ctx, container); err != nil {
		return err
	}

	if err := s.transition(services.StateReady, nil); err != nil {
		return err
	}
	logging.Info("Supervisor", "%s is ready", s.inst.Name)

	if err := s.transition(services.StateSettingUp, nil); err != nil {
		return err
	}
	if err := s.inst.RunSetup(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.fail(services.StateSetupFailed, newServiceError(SetupFailure, s.inst.Name, err))
	}
	if s.persist != nil {
		if err := s.persist(s.inst.Spec.Save()); err != nil {
			return s.fail(services.StateSetupFailed, newServiceError(SetupFailure, s.inst.Name, fmt.Errorf("save settings: %w", err)))
		}
	}

	if err := s.transition(services.StateRunning, nil); err != nil {
		return err
	}
	close(s.running)
	return nil
}

// awaitReadiness races the spec's readiness signal against the container
// process exiting and against ctx.
func (s *Supervisor) awaitReadiness(ctx context.Context, container containerizer.Container) error {
	readyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- s.inst.Spec.WaitReady(readyCtx, &readinessRuntime{
			engine:    s.engine,
			name:      s.containerName,
			container: container,
		})
	}()

	var err error
	select {
	case err = <-result:
	case <-container.Done():
		err = errors.New("container exited")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err == nil {
		return nil
	}

	select {
	case <-container.Done():
		exitErr := container.Err()
		if exitErr == nil {
			exitErr = errors.New("exited with status 0")
		}
		se := newServiceError(StartFailure, s.inst.Name, fmt.Errorf("container exited before it became ready: %w", exitErr))
		se.Output = container.Output()
		return s.fail(services.StateStartFailed, se)
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	se := newServiceError(ReadinessFailure, s.inst.Name, err)
	if se.Output == "" {
		se.Output = container.Output()
	}
	return s.fail(services.StateReadinessFailed, se)
}

// Teardown kills the container process and asks the engine to stop the
// container. It acts at most once and only if a container was started;
// stop errors are logged, not returned.
func (s *Supervisor) Teardown(ctx context.Context) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		container := s.container
		s.mu.Unlock()

		if container == nil {
			return
		}

		logging.Info("Supervisor", "Stopping %s (%s)", s.inst.Name, s.containerName)
		var result *multierror.Error
		if err := container.Kill(); err != nil {
			result = multierror.Append(result, fmt.Errorf("kill: %w", err))
		}
		if err := s.engine.StopContainer(ctx, s.containerName); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop: %w", err))
		}
		if err := result.ErrorOrNil(); err != nil {
			logging.Warn("Supervisor", "Teardown of %s was not clean (ignored): %v", s.inst.Name, err)
		}

		s.setStopped()
	})
}

// attach records the started container. If teardown already began the
// container is killed right away and attach reports false.
func (s *Supervisor) attach(container containerizer.Container) bool {
	s.mu.Lock()
	if !s.stopping {
		s.container = container
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	logging.Debug("Supervisor", "%s started after teardown began, killing it", s.inst.Name)
	if err := container.Kill(); err != nil {
		logging.Warn("Supervisor", "Kill of late container %s failed: %v", s.containerName, err)
	}
	if err := s.engine.StopContainer(context.Background(), s.containerName); err != nil {
		logging.Debug("Supervisor", "Stop of late container %s: %v", s.containerName, err)
	}
	return false
}

func (s *Supervisor) fail(state services.ServiceState, err *ServiceError) error {
	if terr := s.transition(state, err); terr != nil {
		return terr
	}
	logging.Debug("Supervisor", "%s failed during %s: %v", s.inst.Name, err.Phase, err.Err)
	return err
}

func (s *Supervisor) transition(next services.ServiceState, cause error) error {
	s.mu.Lock()
	prev := s.state
	if prev == services.StateStopped || s.stopping {
		s.mu.Unlock()
		return errTornDown
	}
	if !allowed(prev, next) {
		s.mu.Unlock()
		return fmt.Errorf("invalid state transition for %s: %s -> %s", s.inst.Name, prev, next)
	}
	s.state = next
	cb := s.onStateChange
	s.mu.Unlock()

	logging.Debug("Supervisor", "%s: %s -> %s", s.inst.Name, prev, next)
	if cb != nil {
		cb(s.inst.Name, prev, next, cause)
	}
	return nil
}

func (s *Supervisor) setStopped() {
	s.mu.Lock()
	prev := s.state
	s.state = services.StateStopped
	cb := s.onStateChange
	s.mu.Unlock()

	logging.Debug("Supervisor", "%s: %s -> %s", s.inst.Name, prev, services.StateStopped)
	if cb != nil {
		cb(s.inst.Name, prev, services.StateStopped, nil)
	}
}

func allowed(from, to services.ServiceState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// readinessRuntime exposes the running container to a spec's WaitReady.
type readinessRuntime struct {
	engine    containerizer.Runtime
	name      string
	container containerizer.Container
}

func (r *readinessRuntime) ContainerName() string {
	return r.name
}

func (r *readinessRuntime) Exec(ctx context.Context, args ...string) ([]byte, error) {
	return r.engine.Exec(ctx, r.name, args...)
}

func (r *readinessRuntime) Exited() <-chan struct{} {
	return r.container.Done()
}
