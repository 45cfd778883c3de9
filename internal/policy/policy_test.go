// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forjar-dev/forjar/internal/model"
)

func TestLoadFileParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("failure_mode: continue_independent\ntripwire_enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if p.FailureMode != model.FailureContinueIndependent {
		t.Errorf("FailureMode = %q, want continue_independent", p.FailureMode)
	}
	if !p.TripwireEnabled {
		t.Error("TripwireEnabled = false, want true")
	}
}

func TestLoadFileRejectsInvalidFailureMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("failure_mode: give_up\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for invalid failure_mode")
	}
}

func TestLoadFromEnvOrDefaultFindsCandidateInCWD(t *testing.T) {
	t.Setenv(envPolicyFile, "")
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(defaultPolicyFile, []byte("failure_mode: stop_on_first\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, path, err := LoadFromEnvOrDefault()
	if err != nil {
		t.Fatalf("LoadFromEnvOrDefault: %v", err)
	}
	if path != defaultPolicyFile {
		t.Errorf("path = %q, want %q", path, defaultPolicyFile)
	}
	if p.FailureMode != model.FailureStopOnFirst {
		t.Errorf("FailureMode = %q, want stop_on_first", p.FailureMode)
	}
}

func TestLoadFromEnvOrDefaultReturnsNilWhenAbsent(t *testing.T) {
	t.Setenv(envPolicyFile, "")
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	p, path, err := LoadFromEnvOrDefault()
	if err != nil {
		t.Fatalf("LoadFromEnvOrDefault: %v", err)
	}
	if p != nil || path != "" {
		t.Errorf("expected (nil, \"\"), got (%+v, %q)", p, path)
	}
}

func TestMergeOverridesOnlySetFields(t *testing.T) {
	lockEnabled := false
	base := &model.Policy{FailureMode: model.FailureStopOnFirst, LockFileEnabled: &lockEnabled}
	override := &model.Policy{TripwireEnabled: true}

	merged := Merge(base, override)
	if merged.FailureMode != model.FailureStopOnFirst {
		t.Errorf("FailureMode = %q, want stop_on_first (unset override field preserved)", merged.FailureMode)
	}
	if !merged.TripwireEnabled {
		t.Error("TripwireEnabled = false, want true")
	}
	if merged.LockFileEnabled == nil || *merged.LockFileEnabled {
		t.Error("LockFileEnabled override lost base's false value")
	}
}

func TestMergeNilArguments(t *testing.T) {
	if Merge(nil, nil) != nil {
		t.Error("Merge(nil, nil) should be nil")
	}
	base := &model.Policy{FailureMode: model.FailureStopOnFirst}
	if Merge(base, nil) != base {
		t.Error("Merge(base, nil) should return base unchanged")
	}
}
