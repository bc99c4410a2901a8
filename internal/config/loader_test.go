package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, configFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// mockPaths points every lookup at tempDir so no real config is picked up.
func mockPaths(t *testing.T, tempDir string) {
	t.Helper()
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	originalOsUserHomeDir := osUserHomeDir
	originalOsGetwd := osGetwd
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
		osUserHomeDir = originalOsUserHomeDir
		osGetwd = originalOsGetwd
	})

	home := filepath.Join(tempDir, "home")
	wd := filepath.Join(tempDir, "work")
	osUserHomeDir = func() (string, error) { return home, nil }
	osGetwd = func() (string, error) { return wd, nil }
	getUserConfigPath = func() (string, error) {
		return filepath.Join(home, userConfigDir, configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(wd, projectConfigDir, configFileName), nil
	}
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "docker", cfg.Engine)
	assert.Empty(t, cfg.Project)
	assert.Empty(t, cfg.Services)
	assert.Equal(t, filepath.Join(tempDir, "home", defaultStoreDir), cfg.StoreDir)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	writeConfigFile(t, filepath.Join(tempDir, "home", userConfigDir), `
engine: podman
storeDir: ~/svcenv-data
services:
  - service: redis
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "podman", cfg.Engine)
	assert.Equal(t, filepath.Join(tempDir, "home", "svcenv-data"), cfg.StoreDir)
	require.Len(t, cfg.Services, 1)
	assert.Equal(t, "redis", cfg.Services[0].Service)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	writeConfigFile(t, filepath.Join(tempDir, "home", userConfigDir), `
project: personal
services:
  - service: postgres
    name: db
    tag: "15"
  - service: redis
`)
	writeConfigFile(t, filepath.Join(tempDir, "work", projectConfigDir), `
project: myapp
defaultStore: dev
services:
  - service: postgres
    name: db
    tag: "16"
    env:
      DATABASE_URL: "{{ .url }}"
  - service: mysql
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "myapp", cfg.Project)
	assert.Equal(t, "dev", cfg.DefaultStore)
	assert.Equal(t, "docker", cfg.Engine)

	require.Len(t, cfg.Services, 3)
	assert.Equal(t, "db", cfg.Services[0].Name)
	assert.Equal(t, "16", cfg.Services[0].Tag)
	assert.Equal(t, "{{ .url }}", cfg.Services[0].Env["DATABASE_URL"])
	assert.Equal(t, "redis", cfg.Services[1].Service)
	assert.Equal(t, "mysql", cfg.Services[2].Service)
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	originalLookup := osLookupEnv
	t.Cleanup(func() { osLookupEnv = originalLookup })
	osLookupEnv = func(k string) (string, bool) {
		if k == "DB_PASSWORD" {
			return "hunter2", true
		}
		return "", false
	}

	writeConfigFile(t, filepath.Join(tempDir, "work", projectConfigDir), `
services:
  - service: postgres
    options:
      password: ${DB_PASSWORD}
      database: ${DB_NAME:-app}
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Services, 1)
	assert.Equal(t, "hunter2", cfg.Services[0].Options["password"])
	assert.Equal(t, "app", cfg.Services[0].Options["database"])
}

func TestLoadConfig_RejectsUnknownFields(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	writeConfigFile(t, filepath.Join(tempDir, "work", projectConfigDir), `
services:
  - service: postgres
    image: postgres:16
`)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field image not found")
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	writeConfigFile(t, filepath.Join(tempDir, "work", projectConfigDir), "services: [")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	writeConfigFile(t, filepath.Join(tempDir, "work", projectConfigDir), "\n")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "docker", cfg.Engine)
}

func TestLoadConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, tempDir)

	path := writeConfigFile(t, filepath.Join(tempDir, "elsewhere"), `
project: other
storeDir: /tmp/svcenv
services:
  - service: redis
    name: cache
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Project)
	assert.Equal(t, "/tmp/svcenv", cfg.StoreDir)
	require.Len(t, cfg.Services, 1)
	assert.Equal(t, "cache", cfg.Services[0].Key())

	_, err = LoadConfigFile(filepath.Join(tempDir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  SvcenvConfig
		wantErr string
	}{
		{
			name:   "valid",
			config: SvcenvConfig{Engine: "podman", Services: []ServiceDefinition{{Service: "redis"}}},
		},
		{
			name:    "bad engine",
			config:  SvcenvConfig{Engine: "containerd"},
			wantErr: "unsupported engine",
		},
		{
			name:    "missing service id",
			config:  SvcenvConfig{Services: []ServiceDefinition{{Name: "db"}}},
			wantErr: "services[0] has no service id",
		},
		{
			name:    "empty env name",
			config:  SvcenvConfig{Services: []ServiceDefinition{{Service: "redis", Env: map[string]string{"": "x"}}}},
			wantErr: "empty name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeConfigs_KeepsBaseOrder(t *testing.T) {
	base := SvcenvConfig{Services: []ServiceDefinition{
		{Service: "postgres", Name: "a"},
		{Service: "redis"},
	}}
	overlay := SvcenvConfig{Services: []ServiceDefinition{
		{Service: "mysql"},
		{Service: "postgres", Name: "a", Tag: "15"},
	}}

	merged := mergeConfigs(base, overlay)
	require.Len(t, merged.Services, 3)
	assert.Equal(t, []string{"a", "redis", "mysql"}, []string{
		merged.Services[0].Key(), merged.Services[1].Key(), merged.Services[2].Key(),
	})
	assert.Equal(t, "15", merged.Services[0].Tag)
	assert.Empty(t, base.Services[0].Tag)
}
