package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"svcenv/internal/services"
	"svcenv/pkg/logging"
)

// AwaitPulls joins the pull task of every instance. It returns the first
// failure as a *ServiceError with Phase PullFailure; nothing may be started
// unless it returns nil.
func AwaitPulls(ctx context.Context, instances []*services.Instance) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, inst := range instances {
		g.Go(func() error {
			err := inst.Pull().Wait(gctx)
			if err == nil {
				return nil
			}
			if gctx.Err() != nil && err == gctx.Err() {
				return err
			}
			return newServiceError(PullFailure, inst.Name, err)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logging.Debug("Orchestrator", "All %d image pulls completed", len(instances))
	return nil
}
