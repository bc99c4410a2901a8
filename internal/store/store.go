package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"svcenv/pkg/logging"
)

const (
	recordExt = ".yaml"
	dirPerm   = 0700
	filePerm  = 0600
)

var (
	// ErrNotFound is returned by Load when no record exists for the key.
	ErrNotFound = errors.New("settings record not found")
	// ErrProjectNotConfigured means a store operation was requested but the
	// configuration declares no project.
	ErrProjectNotConfigured = errors.New("no project configured: set 'project' in the svcenv config to use stores")
	// ErrStoreNotConfigured means neither --store nor defaultStore was given.
	ErrStoreNotConfigured = errors.New("no store selected: pass --store or set 'defaultStore' in the svcenv config")
)

// Store keeps one JSON settings record per (project, store, instance) under
// Root, laid out as <root>/<project>/<store>/<instance>.yaml.
type Store struct {
	Root string

	mu sync.Mutex
}

// New returns a Store rooted at root. Nothing is created until the first Save.
func New(root string) *Store {
	return &Store{Root: root}
}

// Save writes record for the key, replacing any previous record.
func (s *Store) Save(project, store, name string, record map[string]string) error {
	path, err := s.recordPath(project, store, name)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode settings for %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	// Write atomically
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, filePerm); err != nil {
		return fmt.Errorf("write settings for %s: %w", name, err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("write settings for %s: %w", name, err)
	}
	logging.Debug("Store", "Saved settings for %s/%s/%s", project, store, name)
	return nil
}

// Load returns the record for the key, or an error wrapping ErrNotFound.
func (s *Store) Load(project, store, name string) (map[string]string, error) {
	path, err := s.recordPath(project, store, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s in store %s: %w", name, store, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read settings for %s: %w", name, err)
	}
	var record map[string]string
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode settings for %s (%s): %w", name, path, err)
	}
	if record == nil {
		record = map[string]string{}
	}
	return record, nil
}

// Delete loads the record, hands it to cleanup and then removes the file.
// If cleanup fails the record is kept so the deletion can be retried.
func (s *Store) Delete(project, store, name string, cleanup func(map[string]string) error) error {
	record, err := s.Load(project, store, name)
	if err != nil {
		return err
	}
	if cleanup != nil {
		if err := cleanup(record); err != nil {
			return fmt.Errorf("cleanup of %s failed, settings kept: %w", name, err)
		}
	}

	path, err := s.recordPath(project, store, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove settings for %s: %w", name, err)
	}
	// Drop the store directory once it is empty; failure just leaves it behind.
	_ = os.Remove(filepath.Dir(path))
	logging.Debug("Store", "Deleted settings for %s/%s/%s", project, store, name)
	return nil
}

// ListStores returns the sorted store names that exist for project.
func (s *Store) ListStores(project string) ([]string, error) {
	if err := validName("project", project); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.Root, project))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	stores := []string{}
	for _, e := range entries {
		if e.IsDir() {
			stores = append(stores, e.Name())
		}
	}
	sort.Strings(stores)
	return stores, nil
}

// ListInstances returns the sorted instance names with a record in store.
func (s *Store) ListInstances(project, store string) ([]string, error) {
	if err := validName("project", project); err != nil {
		return nil, err
	}
	if err := validName("store", store); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.Root, project, store))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), recordExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) recordPath(project, store, name string) (string, error) {
	if err := validName("project", project); err != nil {
		return "", err
	}
	if err := validName("store", store); err != nil {
		return "", err
	}
	if err := validName("instance", name); err != nil {
		return "", err
	}
	return filepath.Join(s.Root, project, store, name+recordExt), nil
}

func validName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// Scope is the (project, store) pair a run persists into.
type Scope struct {
	Project string
	Store   string
}

// ResolveScope picks the store for a command: flagStore wins over
// defaultStore. It fails before any work starts when the project or the store
// is missing.
func ResolveScope(project, defaultStore, flagStore string) (Scope, error) {
	if project == "" {
		return Scope{}, ErrProjectNotConfigured
	}
	store := flagStore
	if store == "" {
		store = defaultStore
	}
	if store == "" {
		return Scope{}, ErrStoreNotConfigured
	}
	if err := validName("store", store); err != nil {
		return Scope{}, err
	}
	return Scope{Project: project, Store: store}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Prefix derives the resource prefix a service uses for things that must
// outlive a run, such as volumes.
func Prefix(project, store, name string) string {
	parts := []string{"svcenv", project, store, name}
	for i, p := range parts {
		parts[i] = strings.Trim(unsafeChars.ReplaceAllString(p, "-"), "-")
	}
	return strings.Join(parts, "-")
}
