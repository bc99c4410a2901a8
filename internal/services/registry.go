package services

import (
	"context"
	"fmt"
	"sync"

	"svcenv/internal/containerizer"
	"svcenv/pkg/logging"
)

// Puller fetches container images.
type Puller interface {
	PullImage(ctx context.Context, ref containerizer.ImageRef) error
}

// Registry records the service instances declared for one run. It is
// written during the declaration phase and read-only once frozen.
type Registry struct {
	ctx    context.Context
	puller Puller

	mu        sync.RWMutex
	instances []*Instance
	names     map[string]bool
	frozen    bool
}

// NewRegistry creates an empty registry. Pulls started by Register run
// under ctx. A nil puller registers instances without pulling, which is
// what the show/tool/delete flows use to resolve names.
func NewRegistry(ctx context.Context, puller Puller) *Registry {
	return &Registry{
		ctx:    ctx,
		puller: puller,
		names:  make(map[string]bool),
	}
}

// Register declares a service instance. tag and name are optional; an
// empty name defaults to the service-id and collisions get -2, -3, ...
// The image pull starts immediately in the background.
func (r *Registry) Register(serviceID string, setup SetupFunc, opts Options, tag, name string) (*Instance, error) {
	variant, err := LookupVariant(serviceID)
	if err != nil {
		return nil, err
	}

	image := variant.DefaultImage.WithTag(tag)
	if err := image.Validate(); err != nil {
		return nil, fmt.Errorf("service %s: %w", serviceID, err)
	}

	spec, err := variant.New(opts, image)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", serviceID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil, ErrRegistryFrozen
	}

	base := name
	if base == "" {
		base = serviceID
	}
	unique := r.uniqueNameLocked(base)
	r.names[unique] = true

	inst := &Instance{
		Name:      unique,
		ServiceID: serviceID,
		Index:     len(r.instances),
		Image:     image,
		Spec:      spec,
		Setup:     setup,
		env:       NewOrderedEnv(),
	}
	inst.pull = startPull(r.ctx, r.puller, inst.Name, image)
	r.instances = append(r.instances, inst)

	logging.Debug("Registry", "Registered %s (service %s, image %s)", inst.Name, serviceID, image)
	return inst, nil
}

// uniqueNameLocked returns base, or base-N with the smallest N >= 2 that
// is not taken yet.
func (r *Registry) uniqueNameLocked(base string) string {
	if !r.names[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !r.names[candidate] {
			return candidate
		}
	}
}

// Freeze ends the declaration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Instances returns the registered instances in registration order.
func (r *Registry) Instances() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, len(r.instances))
	copy(out, r.instances)
	return out
}

// Get returns an instance by name.
func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return nil, false
}

// Names returns the instance names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.Name)
	}
	return out
}

// PullTask is the retained handle of one background image pull.
type PullTask struct {
	Image containerizer.ImageRef

	done chan struct{}
	err  error
}

func startPull(ctx context.Context, puller Puller, instance string, image containerizer.ImageRef) *PullTask {
	task := &PullTask{Image: image, done: make(chan struct{})}
	if puller == nil {
		close(task.done)
		return task
	}
	go func() {
		defer close(task.done)
		logging.Info("Puller", "Pulling %s for %s", image, instance)
		task.err = puller.PullImage(ctx, image)
		if task.err != nil {
			logging.Debug("Puller", "Pull of %s for %s failed: %v", image, instance, task.err)
			return
		}
		logging.Debug("Puller", "Pulled %s for %s", image, instance)
	}()
	return task
}

// Done is closed when the pull has finished.
func (p *PullTask) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pull finishes or ctx is cancelled.
func (p *PullTask) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
