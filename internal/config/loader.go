package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"svcenv/internal/template"
	"svcenv/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd
var osLookupEnv = os.LookupEnv

const (
	userConfigDir    = ".config/svcenv"
	projectConfigDir = ".svcenv"
	configFileName   = "config.yaml"
)

// LoadConfig loads the svcenv configuration by layering default, user, and project settings.
func LoadConfig() (SvcenvConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// user config is optional
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
		userConfig, err := loadConfigFromFile(userConfigPath)
		if err != nil {
			return SvcenvConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
		logging.Debug("Config", "Loaded user config from %s", userConfigPath)
		config = mergeConfigs(config, userConfig)
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
		projectConfig, err := loadConfigFromFile(projectConfigPath)
		if err != nil {
			return SvcenvConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
		logging.Debug("Config", "Loaded project config from %s", projectConfigPath)
		config = mergeConfigs(config, projectConfig)
	}

	return finalize(config)
}

// LoadConfigFile loads a single explicit file on top of the defaults,
// skipping the user and project layers.
func LoadConfigFile(path string) (SvcenvConfig, error) {
	fileConfig, err := loadConfigFromFile(path)
	if err != nil {
		return SvcenvConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return finalize(mergeConfigs(GetDefaultConfig(), fileConfig))
}

func finalize(config SvcenvConfig) (SvcenvConfig, error) {
	if config.StoreDir == "" {
		dir, err := defaultStoreRoot()
		if err != nil {
			return SvcenvConfig{}, fmt.Errorf("determine store directory: %w", err)
		}
		config.StoreDir = dir
	} else {
		config.StoreDir = expandHome(config.StoreDir)
	}
	if err := config.Validate(); err != nil {
		return SvcenvConfig{}, err
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a SvcenvConfig from a YAML file. Unknown keys are
// rejected and ${VAR} references in option and env values are expanded.
func loadConfigFromFile(filePath string) (SvcenvConfig, error) {
	var config SvcenvConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return SvcenvConfig{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return config, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return SvcenvConfig{}, err
	}
	expandConfig(&config)
	return config, nil
}

func expandConfig(config *SvcenvConfig) {
	expand := func(s string) string { return template.ExpandEnv(s, osLookupEnv) }
	config.Project = expand(config.Project)
	config.DefaultStore = expand(config.DefaultStore)
	config.StoreDir = expand(config.StoreDir)
	for i := range config.Services {
		svc := &config.Services[i]
		svc.Tag = expand(svc.Tag)
		for k, v := range svc.Options {
			svc.Options[k] = expand(v)
		}
		for k, v := range svc.Env {
			svc.Env[k] = expand(v)
		}
	}
}

// mergeConfigs merges 'overlay' config into 'base' config. Services with the
// same key replace the base definition in place, new ones are appended, so
// the declaration order of the base layer is kept.
func mergeConfigs(base, overlay SvcenvConfig) SvcenvConfig {
	merged := base

	if overlay.Project != "" {
		merged.Project = overlay.Project
	}
	if overlay.DefaultStore != "" {
		merged.DefaultStore = overlay.DefaultStore
	}
	if overlay.Engine != "" {
		merged.Engine = overlay.Engine
	}
	if overlay.StoreDir != "" {
		merged.StoreDir = overlay.StoreDir
	}

	merged.Services = append([]ServiceDefinition(nil), base.Services...)
	index := make(map[string]int, len(merged.Services))
	for i, svc := range merged.Services {
		index[svc.Key()] = i
	}
	for _, svc := range overlay.Services {
		if i, ok := index[svc.Key()]; ok {
			merged.Services[i] = svc
			continue
		}
		index[svc.Key()] = len(merged.Services)
		merged.Services = append(merged.Services, svc)
	}

	return merged
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

func defaultStoreRoot() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, defaultStoreDir), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
