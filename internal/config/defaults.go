package config

const (
	defaultEngine   = "docker"
	defaultStoreDir = ".local/share/svcenv"
)

// GetDefaultConfig returns the configuration used when no file is present:
// docker, no project and no services.
func GetDefaultConfig() SvcenvConfig {
	return SvcenvConfig{
		Engine:   defaultEngine,
		Services: []ServiceDefinition{},
	}
}
