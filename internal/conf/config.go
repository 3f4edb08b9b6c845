// Package conf implements umethod.yaml, the declarative registry
// configuration.
//
// A umethod.yaml file decides, without touching call sites, which of
// the backends a program has constructed get registered, in what order,
// and with which flags, plus named scope profiles that can be applied
// around groups of calls:
//
//	backends:
//	  - name: cuda
//	    priority: 10
//	    coerce: true
//	  - name: cpu
//	profiles:
//	  - name: cuda-strict
//	    backends: [cuda]
//	    only: true
//
// The file never names Go symbols; it refers to backends by the display
// name the program gave them, and Apply matches those names against a
// catalog of constructed backends.
package conf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/umethod/pkg/dispatch"
)

// Config represents the top-level umethod.yaml configuration.
type Config struct {
	// Backends lists the backends to register permanently, in
	// consultation order (subject to Priority).
	Backends []BackendSpec `yaml:"backends"`

	// Profiles lists named scoped selections that callers can apply
	// around groups of calls.
	Profiles []ProfileSpec `yaml:"profiles,omitempty"`
}

// BackendSpec registers one backend on the permanent list.
type BackendSpec struct {
	// Name is the backend's display name, as passed to NewBackend.
	Name string `yaml:"name"`

	// Priority orders the backend ahead of lower-priority entries.
	// Defaults to 0; equal priorities keep file order.
	Priority int `yaml:"priority,omitempty"`

	// Coerce converts dispatchable arguments into the backend's
	// representation before every attempt. Defaults to false.
	Coerce bool `yaml:"coerce,omitempty"`
}

// ProfileSpec is a named scoped backend selection.
type ProfileSpec struct {
	// Name identifies the profile to Config.Scope.
	Name string `yaml:"name"`

	// Backends lists backend display names, innermost order first.
	Backends []string `yaml:"backends"`

	// Only makes the profile exclusive: no backend outside the list
	// is consulted while the profile is active.
	Only bool `yaml:"only,omitempty"`

	// Coerce enables argument conversion for the profile's backends.
	Coerce bool `yaml:"coerce,omitempty"`
}

// LoadConfig reads and parses a umethod.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses umethod.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfig searches for umethod.yaml starting from dir and walking up
// to parent directories. Returns the path and nil if found, or empty
// string and nil if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, base := range []string{"umethod.yaml", "umethod.yml"} {
			candidate := filepath.Join(dir, base)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("%s: no backends defined", path)
	}

	seen := make(map[string]bool)
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("%s: backends[%d]: name is required", path, i)
		}
		if seen[b.Name] {
			return fmt.Errorf("%s: backends[%d]: duplicate backend %q", path, i, b.Name)
		}
		seen[b.Name] = true
	}

	profiles := make(map[string]bool)
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("%s: profiles[%d]: name is required", path, i)
		}
		if profiles[p.Name] {
			return fmt.Errorf("%s: profiles[%d]: duplicate profile %q", path, i, p.Name)
		}
		profiles[p.Name] = true
		if len(p.Backends) == 0 {
			return fmt.Errorf("%s: profiles[%d] (%s): backends is required", path, i, p.Name)
		}
		for _, name := range p.Backends {
			if !seen[name] {
				return fmt.Errorf("%s: profiles[%d] (%s): unknown backend %q", path, i, p.Name, name)
			}
		}
	}
	return nil
}

// Apply registers the configured backends on reg, resolving names
// against catalog. Every configured backend must be present in the
// catalog; extra catalog entries are left unregistered.
func (c *Config) Apply(reg *dispatch.Registry, catalog map[string]*dispatch.Backend) error {
	for _, spec := range c.Backends {
		b, ok := catalog[spec.Name]
		if !ok {
			return fmt.Errorf("configured backend %q was not constructed by the program", spec.Name)
		}
		opts := []dispatch.RegisterOption{dispatch.WithPriority(spec.Priority)}
		if spec.Coerce {
			opts = append(opts, dispatch.WithCoerce())
		}
		reg.Register(b, opts...)
	}
	return nil
}

// Scope derives a context with the named profile's scoped selection
// active, resolving backend names against catalog.
func (c *Config) Scope(ctx context.Context, profile string, catalog map[string]*dispatch.Backend) (context.Context, error) {
	for _, p := range c.Profiles {
		if p.Name != profile {
			continue
		}
		backends := make([]*dispatch.Backend, 0, len(p.Backends))
		for _, name := range p.Backends {
			b, ok := catalog[name]
			if !ok {
				return nil, fmt.Errorf("profile %q: backend %q was not constructed by the program", profile, name)
			}
			backends = append(backends, b)
		}
		var opts []dispatch.ScopeOption
		if p.Only {
			opts = append(opts, dispatch.Only())
		}
		if p.Coerce {
			opts = append(opts, dispatch.Coerce())
		}
		return dispatch.WithScope(ctx, backends, opts...), nil
	}
	return nil, fmt.Errorf("unknown profile %q", profile)
}
