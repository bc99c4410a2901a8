package config

import (
	"errors"
	"fmt"
)

// SvcenvConfig is the top-level configuration structure for svcenv.
type SvcenvConfig struct {
	// Project enables the settings store. Without it runs are ephemeral.
	Project string `yaml:"project,omitempty"`
	// DefaultStore is used when --store is not given.
	DefaultStore string `yaml:"defaultStore,omitempty"`
	// Engine is the container engine CLI, e.g. "docker" or "podman".
	Engine string `yaml:"engine,omitempty"`
	// StoreDir overrides where settings records are kept.
	StoreDir string `yaml:"storeDir,omitempty"`

	Services []ServiceDefinition `yaml:"services,omitempty"`
}

// ServiceDefinition declares one service instance. Definitions are registered
// in the order they appear.
type ServiceDefinition struct {
	Service string            `yaml:"service"`           // service id, e.g. "postgres"
	Name    string            `yaml:"name,omitempty"`    // requested instance name, defaults to the service id
	Tag     string            `yaml:"tag,omitempty"`     // image tag override
	Options map[string]string `yaml:"options,omitempty"` // variant specific options
	Env     map[string]string `yaml:"env,omitempty"`     // templates rendered against the service data
}

// Key identifies a definition when layering configuration files.
func (d ServiceDefinition) Key() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Service
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for structural problems. Unknown service
// ids are reported later, when the registry resolves them.
func (c SvcenvConfig) Validate() error {
	switch c.Engine {
	case "", "docker", "podman":
	default:
		return fmt.Errorf("%w: unsupported engine %q (want docker or podman)", ErrInvalidConfig, c.Engine)
	}
	for i, svc := range c.Services {
		if svc.Service == "" {
			return fmt.Errorf("%w: services[%d] has no service id", ErrInvalidConfig, i)
		}
		for k := range svc.Env {
			if k == "" {
				return fmt.Errorf("%w: services[%d] (%s) declares an env var with an empty name", ErrInvalidConfig, i, svc.Key())
			}
		}
	}
	return nil
}
