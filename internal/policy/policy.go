// SPDX-License-Identifier: AGPL-3.0-or-later

// Package policy loads an optional standalone policy file and merges it
// with a config document's inline policy block, so CLI flags and a
// shared policy file can both override what a single config declares
// (spec.md §3, "Policy").
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forjar-dev/forjar/internal/model"
	"gopkg.in/yaml.v3"
)

const envPolicyFile = "FORJAR_POLICY_FILE"

const defaultPolicyFile = "forjar.policy.yaml"

// LoadFile loads a policy document from path.
func LoadFile(path string) (*model.Policy, error) {
	if path == "" {
		return nil, errors.New("missing policy file path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var p model.Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := validate(&p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

// LoadFromEnvOrDefault loads a policy file named by FORJAR_POLICY_FILE,
// falling back to ./forjar.policy.yaml if present. Returns (nil, "", nil)
// when neither exists.
func LoadFromEnvOrDefault() (*model.Policy, string, error) {
	path := os.Getenv(envPolicyFile)
	if path == "" {
		candidate := filepath.Clean(defaultPolicyFile)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path == "" {
		return nil, "", nil
	}
	p, err := LoadFile(path)
	return p, path, err
}

func validate(p *model.Policy) error {
	if p == nil {
		return nil
	}
	switch p.FailureMode {
	case "", model.FailureStopOnFirst, model.FailureContinueIndependent:
	default:
		return fmt.Errorf("invalid failure_mode: %q", p.FailureMode)
	}
	return nil
}

// Merge layers override's set fields on top of base. Either argument may
// be nil: a nil override returns base and a nil base returns override
// itself; otherwise the result is a new Policy. override wins
// field-by-field: its failure mode replaces base's only when non-empty,
// its lock_file_enabled only when non-nil, and its tripwire_enabled only
// when true (a false override never clears base's tripwire).
func Merge(base, override *model.Policy) *model.Policy {
	if override == nil {
		return base
	}
	if base == nil {
		return override
	}
	merged := *base
	if override.FailureMode != "" {
		merged.FailureMode = override.FailureMode
	}
	if override.TripwireEnabled {
		merged.TripwireEnabled = true
	}
	if override.LockFileEnabled != nil {
		merged.LockFileEnabled = override.LockFileEnabled
	}
	return &merged
}
