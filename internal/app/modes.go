package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"svcenv/internal/orchestrator"
	"svcenv/internal/reporting"
	"svcenv/internal/services"
	"svcenv/internal/store"
	"svcenv/internal/template"
	"svcenv/internal/tools"
	"svcenv/internal/view"
	"svcenv/pkg/logging"
)

// runScope decides whether a run persists settings. A run without a
// project is ephemeral; --store without a project is a configuration error.
func (a *Application) runScope(storeFlag string) (*store.Scope, error) {
	if a.svc.Project == "" {
		if storeFlag != "" {
			return nil, store.ErrProjectNotConfigured
		}
		return nil, nil
	}
	if storeFlag == "" && a.svc.DefaultStore == "" {
		logging.Debug("App", "Project %s has no default store, running without persistence", a.svc.Project)
		return nil, nil
	}
	scope, err := store.ResolveScope(a.svc.Project, a.svc.DefaultStore, storeFlag)
	if err != nil {
		return nil, err
	}
	return &scope, nil
}

func (a *Application) storeScope(storeFlag string) (store.Scope, error) {
	return store.ResolveScope(a.svc.Project, a.svc.DefaultStore, storeFlag)
}

// Run brings the configured services up, runs argv and tears down. The
// returned code is the child's exit code when it ran.
func (a *Application) Run(ctx context.Context, storeFlag string, argv []string) (int, error) {
	scope, err := a.runScope(storeFlag)
	if err != nil {
		return 1, err
	}
	if len(a.svc.Services) == 0 {
		logging.Warn("App", "No services configured, running %s as is", strings.Join(argv, " "))
	}

	registry, err := a.BuildRegistry(ctx, a.engine)
	if err != nil {
		return 1, err
	}

	runID := reporting.GenerateRunID()
	reporter := reporting.NewConsoleReporter()
	opts := orchestrator.Options{
		Engine:        a.engine,
		ChildRunner:   a.ChildRunner,
		OnStateChange: reporting.StateChangeCallback(reporter, runID),
	}
	if scope != nil {
		opts.Store = a.store
		opts.Scope = scope
		logging.Info("App", "Using store %s of project %s", scope.Store, scope.Project)
	}
	logging.Debug("App", "Starting run %s with %d services", runID, len(a.svc.Services))
	code, err := orchestrator.New(opts).Run(ctx, registry, argv)
	if failed := reporter.GetStateStore().Failed(); len(failed) > 0 {
		logging.Info("App", "Run %s: %d of %d services failed: %s", runID, len(failed), len(a.svc.Services), strings.Join(failed, ", "))
	}
	return code, err
}

// Stores lists the stores of the configured project and the default one.
func (a *Application) Stores() ([]string, string, error) {
	if a.svc.Project == "" {
		return nil, "", store.ErrProjectNotConfigured
	}
	stores, err := a.store.ListStores(a.svc.Project)
	if err != nil {
		return nil, "", err
	}
	return stores, a.svc.DefaultStore, nil
}

// Show loads the saved settings of every configured instance.
func (a *Application) Show(ctx context.Context, storeFlag string) (store.Scope, []view.InstanceView, error) {
	scope, err := a.storeScope(storeFlag)
	if err != nil {
		return store.Scope{}, nil, err
	}
	registry, err := a.BuildRegistry(ctx, nil)
	if err != nil {
		return scope, nil, err
	}

	var out []view.InstanceView
	for _, inst := range registry.Instances() {
		iv := view.InstanceView{
			Name:      inst.Name,
			ServiceID: inst.ServiceID,
			Image:     inst.Image.String(),
		}
		rec, err := a.store.Load(scope.Project, scope.Store, inst.Name)
		if errors.Is(err, store.ErrNotFound) {
			out = append(out, iv)
			continue
		}
		if err != nil {
			return scope, nil, err
		}
		if err := inst.Spec.Load(services.Record(rec)); err != nil {
			return scope, nil, fmt.Errorf("load settings for %s: %w", inst.Name, err)
		}
		iv.Data = inst.Spec.ServiceData()
		if env := a.definition(inst).Env; len(env) > 0 {
			rendered, err := template.RenderAll(env, iv.Data)
			if err != nil {
				logging.Warn("App", "Could not render env of %s: %v", inst.Name, err)
			} else {
				iv.Env = rendered
			}
		}
		out = append(out, iv)
	}
	return scope, out, nil
}

// Tool runs a client tool for a configured instance.
func (a *Application) Tool(ctx context.Context, storeFlag, instance, tool string, args []string) (int, error) {
	scope, err := a.storeScope(storeFlag)
	if err != nil {
		return 1, err
	}
	inst, err := a.lookupInstance(ctx, instance)
	if err != nil {
		return 1, err
	}
	runner := &tools.Runner{Store: a.store, Scope: scope, Exec: a.ToolExecutor}
	return runner.Run(ctx, inst, tool, args)
}

// Delete removes the saved settings, and the resources they own, of the
// named instances, or of every instance in the store when none is named.
// It returns the names that were deleted.
func (a *Application) Delete(ctx context.Context, storeFlag string, names ...string) ([]string, error) {
	scope, err := a.storeScope(storeFlag)
	if err != nil {
		return nil, err
	}
	registry, err := a.BuildRegistry(ctx, nil)
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		if names, err = a.store.ListInstances(scope.Project, scope.Store); err != nil {
			return nil, err
		}
	}

	var deleted []string
	var result *multierror.Error
	for _, name := range names {
		inst, configured := registry.Get(name)
		// Owned resources are named after the store prefix only, so a record
		// that no longer loads (a major upgrade) can still be deleted.
		cleanup := func(map[string]string) error {
			if !configured {
				logging.Warn("App", "%s is no longer configured, removing its settings without cleanup", name)
				return nil
			}
			inst.Spec.SetStorePrefix(store.Prefix(scope.Project, scope.Store, name))
			return inst.Spec.Cleanup(ctx, a.engine)
		}
		if err := a.store.Delete(scope.Project, scope.Store, name, cleanup); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}
		deleted = append(deleted, name)
	}
	return deleted, result.ErrorOrNil()
}

func (a *Application) lookupInstance(ctx context.Context, name string) (*services.Instance, error) {
	registry, err := a.BuildRegistry(ctx, nil)
	if err != nil {
		return nil, err
	}
	inst, ok := registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown instance %q (configured: %s)", name, strings.Join(registry.Names(), ", "))
	}
	return inst, nil
}
