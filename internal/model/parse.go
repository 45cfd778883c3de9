// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a structural or referential problem in a config
// document, carrying a dotted-path locator (spec.md §4.2).
type ConfigError struct {
	Locator string
	Msg     string
}

func (e *ConfigError) Error() string {
	if e.Locator == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Locator, e.Msg)
}

// Parse decodes a config document from r. Decoding alone does not validate
// referential integrity; call Validate on the result.
func Parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Load reads and parses a config document from path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

var modeRE = regexp.MustCompile(`^[0-7]{3,4}$`)

var packageProviders = map[string]bool{"apt": true, "cargo": true, "pip": true}
var packageStates = map[string]bool{"present": true, "absent": true, "": true}
var fileStates = map[string]bool{"file": true, "directory": true, "symlink": true, "absent": true}
var serviceStates = map[string]bool{"running": true, "stopped": true, "enabled": true, "disabled": true}
var mountStates = map[string]bool{"mounted": true, "unmounted": true, "absent": true}

// Validate performs the structural validation described in spec.md §4.2:
// schema version, name, machine references, depends_on/restart_on
// references, kind-specific required fields, and enumerated value checks.
// It returns every violation found rather than stopping at the first.
func (c *Config) Validate() []*ConfigError {
	var errs []*ConfigError
	add := func(locator, format string, args ...interface{}) {
		errs = append(errs, &ConfigError{Locator: locator, Msg: fmt.Sprintf(format, args...)})
	}

	if c.Version != SchemaVersion {
		add("version", "must equal %q, got %q", SchemaVersion, c.Version)
	}
	if c.Name == "" {
		add("name", "must be non-empty")
	}

	for _, id := range c.ResourceOrder {
		r := c.Resources[id]
		loc := "resources." + id
		for _, mid := range r.Machine.IDs {
			if _, ok := c.Machines[mid]; !ok {
				add(loc+".machine", "references undeclared machine %q", mid)
			}
		}
		if len(r.Machine.IDs) == 0 && r.Type != "" {
			add(loc+".machine", "required")
		}
		for _, dep := range r.DependsOn {
			if _, ok := c.Resources[dep]; !ok {
				add(loc+".depends_on", "references undeclared resource %q", dep)
			}
		}
		for _, dep := range r.RestartOn {
			if _, ok := c.Resources[dep]; !ok {
				add(loc+".restart_on", "references undeclared resource %q", dep)
			}
		}
		validateKind(loc, r, add)
	}

	return errs
}

func validateKind(loc string, r Resource, add func(string, string, ...interface{})) {
	switch r.Type {
	case KindPackage:
		if !packageProviders[r.Provider] {
			add(loc+".provider", "must be one of apt, cargo, pip, got %q", r.Provider)
		}
		if len(r.Packages) == 0 {
			add(loc+".packages", "must be non-empty")
		}
		if !packageStates[r.State] {
			add(loc+".state", "must be present or absent, got %q", r.State)
		}
	case KindFile:
		if r.Path == "" {
			add(loc+".path", "required")
		}
		if r.State != "" && !fileStates[r.State] {
			add(loc+".state", "must be one of file, directory, symlink, absent, got %q", r.State)
		}
		if r.State == "symlink" && r.Target == "" {
			add(loc+".target", "required when state is symlink")
		}
		if r.Mode != "" && !modeRE.MatchString(r.Mode) {
			add(loc+".mode", "must be a 3- or 4-digit octal string, got %q", r.Mode)
		}
	case KindService:
		if r.Name == "" {
			add(loc+".name", "required")
		}
		if !serviceStates[r.State] {
			add(loc+".state", "must be one of running, stopped, enabled, disabled, got %q", r.State)
		}
	case KindMount:
		if r.Path == "" {
			add(loc+".path", "required")
		}
		if r.Target == "" {
			add(loc+".target", "required")
		}
		if !mountStates[r.State] {
			add(loc+".state", "must be one of mounted, unmounted, absent, got %q", r.State)
		}
	case KindRecipe:
		if r.RecipeSource == "" {
			add(loc+".source", "required")
		}
	default:
		add(loc+".type", "unknown resource type %q", r.Type)
	}
}
