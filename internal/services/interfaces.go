package services

import (
	"context"

	"svcenv/internal/containerizer"
)

// ServiceState represents where a service's container is in its lifecycle.
type ServiceState string

const (
	StatePending           ServiceState = "Pending"
	StateStarting          ServiceState = "Starting"
	StateAwaitingReadiness ServiceState = "AwaitingReadiness"
	StateReady             ServiceState = "Ready"
	StateSettingUp         ServiceState = "SettingUp"
	StateRunning           ServiceState = "Running"
	StateStopped           ServiceState = "Stopped"

	StateStartFailed     ServiceState = "StartFailed"
	StateReadinessFailed ServiceState = "ReadinessFailed"
	StateSetupFailed     ServiceState = "SetupFailed"
)

// IsFailed reports whether s is one of the error states.
func (s ServiceState) IsFailed() bool {
	switch s {
	case StateStartFailed, StateReadinessFailed, StateSetupFailed:
		return true
	}
	return false
}

// StateChangeCallback is called when a service's state changes
type StateChangeCallback func(name string, oldState, newState ServiceState, err error)

// Record is the flat settings blob persisted for one service instance.
type Record map[string]string

// Spec is the pluggable definition of one service variant: how to launch
// it, how to tell it is usable and what it exposes once it is.
type Spec interface {
	// Image is the repository and default tag for this variant.
	Image() containerizer.ImageRef

	// Configure fills in the launch options (ports, env, volumes, command)
	// on a config that already carries the container name and image.
	Configure(base containerizer.ContainerConfig) containerizer.ContainerConfig

	// WaitReady blocks until the container is usable or fails. It resolves
	// exactly once; retries are the spec's own business.
	WaitReady(ctx context.Context, rt ReadinessRuntime) error

	// ServiceData is the connection data snapshot (url, host, port, ...).
	ServiceData() map[string]string

	// Save and Load round-trip the persisted settings.
	Save() Record
	Load(rec Record) error

	// SetStorePrefix tells the spec it runs inside a settings store scope so
	// it can name persistent resources (volumes) after it.
	SetStorePrefix(prefix string)

	// Tools lists the client programs this variant knows how to launch.
	Tools() []Tool

	// Cleanup removes resources owned by a persisted instance.
	Cleanup(ctx context.Context, c Cleaner) error
}

// ReadinessRuntime is what a spec may use while waiting for readiness.
type ReadinessRuntime interface {
	// ContainerName is the engine name of the running container.
	ContainerName() string
	// Exec runs a command inside the container.
	Exec(ctx context.Context, args ...string) ([]byte, error)
	// Exited is closed if the container process goes away.
	Exited() <-chan struct{}
}

// Cleaner removes engine resources on behalf of a spec.
type Cleaner interface {
	RemoveVolume(ctx context.Context, volume string) error
}

// Tool is an auxiliary client program a spec can launch against its data.
type Tool struct {
	Name        string
	Description string
	// Command builds the argv and extra environment for the tool. The
	// returned cleanup func, if any, runs after the tool exits.
	Command func(data map[string]string, extraArgs []string) (ToolCommand, error)
}

// ToolCommand is a fully resolved tool invocation.
type ToolCommand struct {
	Argv    []string
	Env     map[string]string
	Cleanup func()
}
