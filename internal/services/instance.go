package services

import (
	"context"
	"fmt"
	"sync"

	"svcenv/internal/containerizer"
	"svcenv/pkg/logging"
)

// SetupFunc runs once the instance's container is ready. It receives the
// instance's own Handle, which is the only way to declare environment
// variables for the child process.
type SetupFunc func(ctx context.Context, h *Handle) error

// Instance is one declared, uniquely named request for a backing container.
type Instance struct {
	Name      string
	ServiceID string
	Index     int
	Image     containerizer.ImageRef
	Spec      Spec
	Setup     SetupFunc

	env  *OrderedEnv
	pull *PullTask
}

// Env returns a snapshot of the variables declared so far, in declaration order.
func (i *Instance) Env() []EnvVar {
	return i.env.Pairs()
}

// Pull returns the pull task started at registration.
func (i *Instance) Pull() *PullTask {
	return i.pull
}

// RunSetup executes the setup callback with a Handle that is only valid
// for the duration of the call. A panic inside the callback is reported
// as an error.
func (i *Instance) RunSetup(ctx context.Context) (err error) {
	if i.Setup == nil {
		return nil
	}
	h := &Handle{inst: i, active: true}
	defer h.deactivate()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setup callback for %s panicked: %v", i.Name, r)
		}
	}()
	return i.Setup(ctx, h)
}

// Handle is the narrow mutation surface given to a setup callback.
type Handle struct {
	inst *Instance

	mu     sync.Mutex
	active bool
}

// Name returns the owning instance's name.
func (h *Handle) Name() string {
	return h.inst.Name
}

// ServiceData returns the ready service's connection data.
func (h *Handle) ServiceData() map[string]string {
	return h.inst.Spec.ServiceData()
}

// SetEnv declares a variable for the child process environment. It fails
// with ErrNoActiveServiceContext once the callback has returned.
func (h *Handle) SetEnv(name, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return fmt.Errorf("%w: %s=%s set outside the setup of %s", ErrNoActiveServiceContext, name, value, h.inst.Name)
	}
	if name == "" {
		return fmt.Errorf("empty environment variable name for %s", h.inst.Name)
	}
	h.inst.env.Set(name, value)
	logging.Debug("Services", "%s: set %s", h.inst.Name, name)
	return nil
}

func (h *Handle) deactivate() {
	h.mu.Lock()
	h.active = false
	h.mu.Unlock()
}

// EnvVar is a single name/value pair.
type EnvVar struct {
	Name  string
	Value string
}

// OrderedEnv is a map that remembers first-insertion order.
type OrderedEnv struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]string
}

// NewOrderedEnv returns an empty OrderedEnv.
func NewOrderedEnv() *OrderedEnv {
	return &OrderedEnv{values: make(map[string]string)}
}

// Set adds or overwrites a key; an overwrite keeps the original position.
func (e *OrderedEnv) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value for key.
func (e *OrderedEnv) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.values[key]
	return v, ok
}

// Pairs returns the entries in insertion order.
func (e *OrderedEnv) Pairs() []EnvVar {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]EnvVar, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, EnvVar{Name: k, Value: e.values[k]})
	}
	return out
}

// Len returns the number of entries.
func (e *OrderedEnv) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.keys)
}
