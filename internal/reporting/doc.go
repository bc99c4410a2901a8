// Package reporting observes the service lifecycle of a run.
//
// Supervisors report every state transition through a
// services.StateChangeCallback. StateChangeCallback turns those into
// ServiceUpdate values tagged with the run's id, and ConsoleReporter logs
// the ones that matter while keeping the latest state per service in a
// StateStore.
package reporting
