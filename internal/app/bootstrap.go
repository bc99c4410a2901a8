package app

import (
	"fmt"
	"os"

	"svcenv/internal/config"
	"svcenv/internal/containerizer"
	"svcenv/internal/orchestrator"
	"svcenv/internal/store"
	"svcenv/internal/tools"
	"svcenv/pkg/logging"
)

// Application wires the configuration to the engine, the settings store and
// the orchestrator.
type Application struct {
	config *Config
	svc    config.SvcenvConfig
	engine containerizer.Runtime
	store  *store.Store

	// ChildRunner and ToolExecutor default to running real processes.
	ChildRunner  orchestrator.ChildRunner
	ToolExecutor tools.Executor
}

// NewApplication initializes logging and loads the configuration.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	// stdout belongs to the child process
	logging.InitForCLI(appLogLevel, os.Stderr)

	var svcCfg config.SvcenvConfig
	var err error
	if cfg.ConfigPath != "" {
		svcCfg, err = config.LoadConfigFile(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load svcenv configuration from %s: %w", cfg.ConfigPath, err)
		}
		logging.Debug("Bootstrap", "Loaded configuration from %s", cfg.ConfigPath)
	} else {
		svcCfg, err = config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load svcenv configuration: %w", err)
		}
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}
	cfg.SvcenvConfig = &svcCfg

	if cfg.Engine != "" {
		svcCfg.Engine = cfg.Engine
	}

	return &Application{
		config: cfg,
		svc:    svcCfg,
		engine: containerizer.NewDockerRuntime(svcCfg.Engine),
		store:  store.New(svcCfg.StoreDir),
	}, nil
}

// New builds an Application from already loaded parts.
func New(svcCfg config.SvcenvConfig, engine containerizer.Runtime, st *store.Store) *Application {
	return &Application{
		config: &Config{SvcenvConfig: &svcCfg},
		svc:    svcCfg,
		engine: engine,
		store:  st,
	}
}

// Settings returns the effective configuration.
func (a *Application) Settings() config.SvcenvConfig {
	return a.svc
}
