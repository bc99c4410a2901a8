package reporting

import (
	"time"

	"svcenv/internal/services"
	"svcenv/pkg/logging"
)

// ConsoleReporter logs service updates through pkg/logging and keeps the
// latest state of every service in a StateStore.
type ConsoleReporter struct {
	stateStore *StateStore
}

// NewConsoleReporter creates a new ConsoleReporter
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterWithStateStore(nil)
}

// NewConsoleReporterWithStateStore creates a new ConsoleReporter with a specific state store
func NewConsoleReporterWithStateStore(stateStore *StateStore) *ConsoleReporter {
	if stateStore == nil {
		stateStore = NewStateStore()
	}
	return &ConsoleReporter{stateStore: stateStore}
}

// Report logs update if it changed the service's state. Failures go to
// Warn, lifecycle milestones to Info and intermediate steps to Debug.
func (c *ConsoleReporter) Report(update ServiceUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	if !c.stateStore.SetServiceState(update) && update.ErrorDetail == nil {
		return
	}

	subsystem := "Service-" + update.Service
	switch {
	case update.NewState.IsFailed():
		// The error itself reaches the user as the run's result.
		logging.Warn(subsystem, "State: %s (run %s)", update.NewState, update.RunID)
	case update.NewState == services.StateRunning:
		logging.Info(subsystem, "Ready and set up (run %s)", update.RunID)
	case update.NewState == services.StateStopped:
		logging.Info(subsystem, "Stopped (run %s)", update.RunID)
	default:
		logging.Debug(subsystem, "State: %s -> %s (run %s)", update.OldState, update.NewState, update.RunID)
	}
}

// GetStateStore returns the underlying state store
func (c *ConsoleReporter) GetStateStore() *StateStore {
	return c.stateStore
}
