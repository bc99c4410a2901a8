package app

import (
	"svcenv/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath replaces the layered configuration with a single file.
	ConfigPath string

	// Debug settings
	Debug bool

	// Engine overrides the configured container engine binary.
	Engine string

	// Environment configuration
	SvcenvConfig *config.SvcenvConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, debug bool, engine string) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
		Engine:     engine,
	}
}
