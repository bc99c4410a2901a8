package reporting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"svcenv/internal/services"
)

// ServiceUpdate is one state transition of a service instance in a run.
type ServiceUpdate struct {
	// Timestamp of when the transition happened.
	Timestamp time.Time
	// RunID ties together every update of one run.
	RunID string
	// Service is the instance name, e.g. "db" or "postgres-2".
	Service  string
	OldState services.ServiceState
	NewState services.ServiceState
	// ErrorDetail is set when NewState is a failure state.
	ErrorDetail error
}

// String provides a simple string representation for debugging the update itself.
func (u ServiceUpdate) String() string {
	return fmt.Sprintf("Update(TS: %s, Run: %s, Service: %s, %s -> %s, Err: %v)",
		u.Timestamp.Format(time.RFC3339), u.RunID, u.Service, u.OldState, u.NewState, u.ErrorDetail)
}

// ServiceReporter receives service updates. Implementations must be safe
// for concurrent use; supervisors report from their own goroutines.
type ServiceReporter interface {
	Report(update ServiceUpdate)
}

// GenerateRunID returns a fresh identifier for a run.
func GenerateRunID() string {
	return uuid.NewString()[:8]
}

// StateChangeCallback adapts a reporter to the orchestrator's callback,
// stamping every update with runID.
func StateChangeCallback(r ServiceReporter, runID string) services.StateChangeCallback {
	return func(name string, oldState, newState services.ServiceState, err error) {
		r.Report(ServiceUpdate{
			Timestamp:   time.Now(),
			RunID:       runID,
			Service:     name,
			OldState:    oldState,
			NewState:    newState,
			ErrorDetail: err,
		})
	}
}
