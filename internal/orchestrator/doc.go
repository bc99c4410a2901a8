// Package orchestrator runs a set of declared services for the length of
// one command.
//
// A run goes through these steps:
//
//  1. Join the image pulls started at registration (AwaitPulls). A single
//     failed pull aborts the run before any container starts.
//  2. With a settings store, give every spec its store prefix and feed it
//     the record saved by a previous run.
//  3. Start one Supervisor per instance, concurrently. A supervisor drives
//     its container Pending -> Starting -> AwaitingReadiness -> Ready ->
//     SettingUp -> Running, and saves the spec's settings after setup.
//  4. Once every supervisor is Running, compose the child environment
//     (ComposeEnv) and run the command.
//  5. Tear every started container down exactly once, whatever happened.
//
// The first supervisor to fail cancels the others and triggers teardown of
// everything started so far. The returned *ServiceError names the service
// and the phase that failed.
//
// # Usage Example
//
//	registry := services.NewRegistry(ctx, engine)
//	registry.Register("postgres", setup, nil, "", "db")
//
//	orch := orchestrator.New(orchestrator.Options{Engine: engine})
//	code, err := orch.Run(ctx, registry, []string{"go", "test", "./..."})
package orchestrator
