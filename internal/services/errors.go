package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownService is returned when no variant is registered for a service-id.
	ErrUnknownService = errors.New("unknown service")

	// ErrNoActiveServiceContext is returned when SetEnv is called outside the
	// owning instance's setup callback.
	ErrNoActiveServiceContext = errors.New("no active service context")

	// ErrRegistryFrozen is returned by Register once orchestration has begun.
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// UnknownToolError names the requested tool and what was available instead.
type UnknownToolError struct {
	Service   string
	Tool      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown tool %q for %s: service has no tools", e.Tool, e.Service)
	}
	return fmt.Sprintf("unknown tool %q for %s (available: %s)", e.Tool, e.Service, strings.Join(e.Available, ", "))
}
