package app

import (
	"context"
	"fmt"
	"sort"

	"svcenv/internal/config"
	"svcenv/internal/services"
	"svcenv/internal/template"
	"svcenv/internal/view"
	"svcenv/pkg/logging"
)

// BuildRegistry registers every configured service in declaration order.
// With a nil puller no images are pulled, which is how the read-only
// commands resolve instance names. Unknown service ids are reported before
// anything is registered.
func (a *Application) BuildRegistry(ctx context.Context, puller services.Puller) (*services.Registry, error) {
	for _, def := range a.svc.Services {
		if _, err := services.LookupVariant(def.Service); err != nil {
			return nil, err
		}
	}

	registry := services.NewRegistry(ctx, puller)
	for _, def := range a.svc.Services {
		if _, err := registry.Register(def.Service, envSetup(def.Env), services.Options(def.Options), def.Tag, def.Name); err != nil {
			return nil, fmt.Errorf("register %s: %w", def.Key(), err)
		}
	}
	return registry, nil
}

// definition returns the configuration entry an instance was built from.
func (a *Application) definition(inst *services.Instance) config.ServiceDefinition {
	return a.svc.Services[inst.Index]
}

// envSetup renders the declared env templates against the ready service
// and sets them on its handle.
func envSetup(env map[string]string) services.SetupFunc {
	if len(env) == 0 {
		return nil
	}
	return func(ctx context.Context, h *services.Handle) error {
		rendered, err := template.RenderAll(env, h.ServiceData())
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(rendered))
		for k := range rendered {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := h.SetEnv(k, rendered[k]); err != nil {
				return err
			}
		}
		return nil
	}
}

// Services describes the variant catalog.
func (a *Application) Services() []view.VariantInfo {
	var out []view.VariantInfo
	for _, v := range services.Variants() {
		info := view.VariantInfo{
			ID:           v.ID,
			Description:  v.Description,
			DefaultImage: v.DefaultImage.String(),
		}
		spec, err := v.New(nil, v.DefaultImage)
		if err != nil {
			logging.Debug("App", "Could not list tools of %s: %v", v.ID, err)
		} else {
			for _, t := range spec.Tools() {
				info.Tools = append(info.Tools, t.Name)
			}
		}
		out = append(out, info)
	}
	return out
}
