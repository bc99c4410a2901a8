package reporting

import (
	"sort"
	"sync"

	"svcenv/internal/services"
)

// StateStore keeps the latest state per service of a run.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]services.ServiceState
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]services.ServiceState)}
}

// SetServiceState records update and reports whether the state changed.
func (s *StateStore) SetServiceState(update ServiceUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.states[update.Service]
	s.states[update.Service] = update.NewState
	return !existed || prev != update.NewState
}

// Failed returns the services that ended in a failure state, sorted.
func (s *StateStore) Failed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, state := range s.states {
		if state.IsFailed() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
