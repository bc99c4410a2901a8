package services

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"svcenv/internal/containerizer"
)

// Options are the construction options handed to a variant factory.
type Options map[string]string

// Get returns the option value or def when unset or empty.
func (o Options) Get(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

// Int returns the option as an int, def when unset.
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %q is not a number", key, v)
	}
	return n, nil
}

// Duration returns the option as a time.Duration, def when unset.
func (o Options) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return d, nil
}

// Factory builds a Spec for the given options and resolved image.
type Factory func(opts Options, image containerizer.ImageRef) (Spec, error)

// Variant is one entry of the service catalog.
type Variant struct {
	ID           string
	Description  string
	DefaultImage containerizer.ImageRef
	New          Factory
}

var (
	catalogMu sync.RWMutex
	catalog   = make(map[string]Variant)
)

// RegisterVariant adds or replaces a service variant in the catalog.
func RegisterVariant(v Variant) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	catalog[v.ID] = v
}

// LookupVariant resolves a service-id.
func LookupVariant(id string) (Variant, error) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	v, ok := catalog[id]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownService, id, variantIDsLocked())
	}
	return v, nil
}

// Variants returns the catalog sorted by id.
func Variants() []Variant {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make([]Variant, 0, len(catalog))
	for _, v := range catalog {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func variantIDsLocked() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindTool resolves a tool by name among the spec's tools.
func FindTool(serviceName string, spec Spec, name string) (Tool, error) {
	var available []string
	for _, t := range spec.Tools() {
		if t.Name == name {
			return t, nil
		}
		available = append(available, t.Name)
	}
	return Tool{}, &UnknownToolError{Service: serviceName, Tool: name, Available: available}
}
