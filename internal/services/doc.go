// Package services provides the service abstraction layer for svcenv.
//
// A service variant (postgres, redis, mysql) is a Spec: it knows how to
// configure its container, how to tell when the container is usable, what
// connection data it exposes and which client tools can talk to it. Variants
// register themselves in a catalog keyed by service id.
//
// # Core Concepts
//
// Registry: The per-run list of declared instances. Register resolves the
// variant, gives the instance a unique name (postgres, postgres-2, ...) and
// starts pulling its image in the background. The registry is frozen once
// orchestration begins.
//
// Instance: One declared service with its Spec, its setup callback and the
// environment variables declared for the child process.
//
// Handle: The value passed to a setup callback. SetEnv only works while the
// callback runs, so every variable is attributed to exactly one instance.
//
// ServiceState: Where an instance is in its lifecycle.
//
// # Service Lifecycle
//
//	Pending -> Starting -> AwaitingReadiness -> Ready -> SettingUp -> Running -> Stopped
//
// Starting, AwaitingReadiness and SettingUp can fail into StartFailed,
// ReadinessFailed and SetupFailed. The transitions themselves are driven by
// the orchestrator package.
//
// # Example Usage
//
//	registry := services.NewRegistry(ctx, engine)
//	_, err := registry.Register("postgres", func(ctx context.Context, h *services.Handle) error {
//	    return h.SetEnv("DATABASE_URL", h.ServiceData()["url"])
//	}, services.Options{"database": "app"}, "16", "db")
package services
