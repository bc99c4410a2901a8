package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStore_SaveLoad(t *testing.T) {
	s := New(t.TempDir())
	record := map[string]string{"user": "app", "password": "pw", "port": "5433"}

	require.NoError(t, s.Save("myapp", "dev", "db", record))

	loaded, err := s.Load("myapp", "dev", "db")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)

	info, err := os.Stat(filepath.Join(s.Root, "myapp", "dev", "db.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save("p", "s", "db", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, s.Save("p", "s", "db", map[string]string{"a": "3"}))

	loaded, err := s.Load("p", "s", "db")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3"}, loaded)

	_, err = os.Stat(filepath.Join(s.Root, "p", "s", "db.yaml.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_ValuesStayStrings(t *testing.T) {
	s := New(t.TempDir())
	record := map[string]string{"port": "05433", "ssl": "yes", "version": "16.0", "password": "", "dsn": "a: b # c"}
	require.NoError(t, s.Save("p", "s", "db", record))

	data, err := os.ReadFile(filepath.Join(s.Root, "p", "s", "db.yaml"))
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	for k, v := range raw {
		assert.IsType(t, "", v, "value of %s must be written as a string", k)
	}

	loaded, err := s.Load("p", "s", "db")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
}

func TestStore_LoadEmptyFile(t *testing.T) {
	s := New(t.TempDir())
	dir := filepath.Join(s.Root, "p", "s")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.yaml"), nil, 0600))

	loaded, err := s.Load("p", "s", "db")
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.NotNil(t, loaded)
}

func TestStore_LoadNotFound(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Load("p", "s", "db")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadCorrupt(t *testing.T) {
	s := New(t.TempDir())
	dir := filepath.Join(s.Root, "p", "s")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.yaml"), []byte("port: [unterminated"), 0600))

	_, err := s.Load("p", "s", "db")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save("p", "s", "db", map[string]string{"port": "1"}))

	var seen map[string]string
	require.NoError(t, s.Delete("p", "s", "db", func(r map[string]string) error {
		seen = r
		return nil
	}))
	assert.Equal(t, map[string]string{"port": "1"}, seen)

	_, err := s.Load("p", "s", "db")
	assert.ErrorIs(t, err, ErrNotFound)

	stores, err := s.ListStores("p")
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestStore_DeleteKeepsRecordWhenCleanupFails(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save("p", "s", "db", map[string]string{"port": "1"}))

	err := s.Delete("p", "s", "db", func(map[string]string) error {
		return errors.New("volume in use")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volume in use")

	_, err = s.Load("p", "s", "db")
	assert.NoError(t, err)
}

func TestStore_DeleteMissing(t *testing.T) {
	s := New(t.TempDir())
	called := false
	err := s.Delete("p", "s", "db", func(map[string]string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
}

func TestStore_List(t *testing.T) {
	s := New(t.TempDir())

	stores, err := s.ListStores("p")
	require.NoError(t, err)
	assert.Empty(t, stores)

	require.NoError(t, s.Save("p", "staging", "db", map[string]string{}))
	require.NoError(t, s.Save("p", "dev", "db", map[string]string{}))
	require.NoError(t, s.Save("p", "dev", "cache", map[string]string{}))
	require.NoError(t, s.Save("other", "prod", "db", map[string]string{}))

	stores, err = s.ListStores("p")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "staging"}, stores)

	names, err := s.ListInstances("p", "dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "db"}, names)
}

func TestStore_RejectsUnsafeNames(t *testing.T) {
	s := New(t.TempDir())
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, s.Save("p", "s", name, map[string]string{}), "name %q", name)
	}
	assert.Error(t, s.Save("../x", "s", "db", map[string]string{}))
}

func TestResolveScope(t *testing.T) {
	tests := []struct {
		name         string
		project      string
		defaultStore string
		flagStore    string
		want         Scope
		wantErr      error
	}{
		{"flag wins", "app", "dev", "ci", Scope{"app", "ci"}, nil},
		{"default store", "app", "dev", "", Scope{"app", "dev"}, nil},
		{"no project", "", "dev", "ci", Scope{}, ErrProjectNotConfigured},
		{"no store", "app", "", "", Scope{}, ErrStoreNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveScope(tt.project, tt.defaultStore, tt.flagStore)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "svcenv-app-dev-db", Prefix("app", "dev", "db"))
	assert.Equal(t, "svcenv-my-app-dev-db-2", Prefix("my app", "dev", "db-2"))
	assert.Equal(t, "svcenv-app-feature-x-db", Prefix("app", "feature/x", "db"))
}
