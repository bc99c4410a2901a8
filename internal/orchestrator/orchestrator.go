package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"svcenv/internal/containerizer"
	"svcenv/internal/services"
	"svcenv/internal/store"
	"svcenv/pkg/logging"
)

const teardownTimeout = 30 * time.Second

// SettingsStore is the part of the settings store a run needs.
type SettingsStore interface {
	Save(project, store, name string, record map[string]string) error
	Load(project, store, name string) (map[string]string, error)
}

// Options configures an Orchestrator.
type Options struct {
	Engine containerizer.Runtime
	// Store and Scope enable persisted settings; both must be set.
	Store SettingsStore
	Scope *store.Scope
	// ChildRunner launches the target command. Defaults to ExecChildRunner.
	ChildRunner ChildRunner
	// Environ is the base environment of the child. Defaults to os.Environ.
	Environ func() []string
	// PID seeds container names. Defaults to os.Getpid().
	PID int
	// OnStateChange observes every supervisor transition.
	OnStateChange services.StateChangeCallback
}

// Orchestrator coordinates one run: pulls, supervisors, the child process
// and teardown.
type Orchestrator struct {
	opts Options

	mu          sync.Mutex
	supervisors []*Supervisor
	cancel      context.CancelFunc
	inflight    sync.WaitGroup
}

// New creates an orchestrator. Nothing happens until Run or Up is called.
func New(opts Options) *Orchestrator {
	if opts.ChildRunner == nil {
		opts.ChildRunner = &ExecChildRunner{}
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	if opts.PID == 0 {
		opts.PID = os.Getpid()
	}
	return &Orchestrator{opts: opts}
}

// Run brings every registered service up, runs argv with the composed
// environment and tears everything down afterwards. The returned code is
// the child's exit code when it ran, 1 otherwise.
func (o *Orchestrator) Run(ctx context.Context, registry *services.Registry, argv []string) (int, error) {
	if len(argv) == 0 {
		return 1, errors.New("no command given")
	}

	downCtx := context.WithoutCancel(ctx)
	defer func() {
		tctx, cancel := context.WithTimeout(downCtx, teardownTimeout)
		defer cancel()
		o.Down(tctx)
	}()

	if err := o.Up(ctx, registry); err != nil {
		return 1, err
	}
	if err := ctx.Err(); err != nil {
		return 1, err
	}

	env := ComposeEnv(o.opts.Environ(), registry.Instances())
	logging.Info("Orchestrator", "All services running, starting %s", argv[0])
	code, err := o.opts.ChildRunner.RunChild(ctx, argv, env)
	if err != nil {
		return 1, err
	}
	logging.Debug("Orchestrator", "%s exited with status %d", argv[0], code)
	return code, nil
}

// Up awaits the pulls, loads persisted settings and starts every service,
// returning once all of them are Running or the first one failed. Down
// must be called afterwards in both cases.
func (o *Orchestrator) Up(ctx context.Context, registry *services.Registry) error {
	registry.Freeze()
	instances := registry.Instances()

	if err := AwaitPulls(ctx, instances); err != nil {
		return err
	}

	if err := o.loadSettings(instances); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	supervisors := make([]*Supervisor, len(instances))
	for i, inst := range instances {
		sup := NewSupervisor(inst, o.opts.Engine, containerizer.ContainerName(o.opts.PID, inst.Index), o.persister(inst))
		sup.SetStateChangeCallback(o.opts.OnStateChange)
		supervisors[i] = sup
	}

	o.mu.Lock()
	o.supervisors = supervisors
	o.cancel = cancel
	o.mu.Unlock()

	// Buffered so supervisors still running after an abort never block.
	results := make(chan error, len(supervisors))
	for _, sup := range supervisors {
		o.inflight.Add(1)
		go func() {
			defer o.inflight.Done()
			results <- sup.Run(runCtx)
		}()
	}

	for range supervisors {
		if err := <-results; err != nil {
			logging.Debug("Orchestrator", "Aborting run: %v", err)
			cancel()
			o.teardownAll(context.WithoutCancel(ctx))
			return err
		}
	}
	return nil
}

// Down tears down every supervisor that was started and waits, bounded by
// ctx, for their Run calls to return. It is safe to call more than once.
func (o *Orchestrator) Down(ctx context.Context) {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.teardownAll(ctx)

	finished := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		logging.Warn("Orchestrator", "Gave up waiting for services to finish: %v", ctx.Err())
	}
}

// Supervisors returns the supervisors of the current run in registration order.
func (o *Orchestrator) Supervisors() []*Supervisor {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Supervisor, len(o.supervisors))
	copy(out, o.supervisors)
	return out
}

func (o *Orchestrator) teardownAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sup := range o.Supervisors() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sup.Teardown(ctx)
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) storeActive() bool {
	return o.opts.Store != nil && o.opts.Scope != nil
}

// loadSettings assigns store prefixes and feeds previously saved records
// back into the specs.
func (o *Orchestrator) loadSettings(instances []*services.Instance) error {
	if !o.storeActive() {
		return nil
	}
	scope := *o.opts.Scope
	for _, inst := range instances {
		inst.Spec.SetStorePrefix(store.Prefix(scope.Project, scope.Store, inst.Name))

		rec, err := o.opts.Store.Load(scope.Project, scope.Store, inst.Name)
		if errors.Is(err, store.ErrNotFound) {
			logging.Debug("Orchestrator", "No saved settings for %s in store %s", inst.Name, scope.Store)
			continue
		}
		if err != nil {
			return fmt.Errorf("load settings for %s: %w", inst.Name, err)
		}
		if err := inst.Spec.Load(services.Record(rec)); err != nil {
			return fmt.Errorf("load settings for %s: %w", inst.Name, err)
		}
		logging.Debug("Orchestrator", "Loaded saved settings for %s from store %s", inst.Name, scope.Store)
	}
	return nil
}

func (o *Orchestrator) persister(inst *services.Instance) func(services.Record) error {
	if !o.storeActive() {
		return nil
	}
	scope := *o.opts.Scope
	return func(rec services.Record) error {
		return o.opts.Store.Save(scope.Project, scope.Store, inst.Name, rec)
	}
}

// ComposeEnv layers each instance's declared variables over base, in
// registration order; the last writer of a key wins. Keys keep the
// position of their first appearance.
func ComposeEnv(base []string, instances []*services.Instance) []string {
	var keys []string
	values := make(map[string]string)
	set := func(k, v string) {
		if _, ok := values[k]; !ok {
			keys = append(keys, k)
		}
		values[k] = v
	}

	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		set(k, v)
	}
	for _, inst := range instances {
		for _, e := range inst.Env() {
			set(e.Name, e.Value)
		}
	}

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+values[k])
	}
	return env
}
