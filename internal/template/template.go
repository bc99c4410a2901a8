// Package template renders the env values declared for a service against the
// data the service reports once it is ready.
//
// Values use Go template syntax with the sprig function library, e.g.
//
//	DATABASE_URL: "{{ .url }}"
//	PGHOST: "{{ .host | upper }}"
//
// Plain strings without template actions are returned unchanged.
package template

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Render executes a single template string against data. A reference to a
// key that data does not contain is an error.
func Render(name, text string, data map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid template for %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", fmt.Errorf("template for %s references a key the service does not provide (available: %s): %w",
				name, strings.Join(keys(data), ", "), err)
		}
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderAll renders every value of env. Keys are processed in sorted order so
// the first error reported is deterministic.
func RenderAll(env map[string]string, data map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(env))
	for _, k := range keys(env) {
		v, err := Render(k, env[k], data)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} with values from lookup.
// Unlike os.ExpandEnv a bare $VAR is left alone, so shell-like strings in
// option values survive.
func ExpandEnv(s string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		parts := envRef.FindStringSubmatch(m)
		if v, ok := lookup(parts[1]); ok && v != "" {
			return v
		}
		return parts[3]
	})
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
