// SPDX-License-Identifier: AGPL-3.0-or-later

// Package statestore persists per-machine lock files and event logs with
// the atomicity guarantees required by spec.md §4.8.
package statestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forjar-dev/forjar/internal/model"
	"github.com/forjar-dev/forjar/internal/paths"
	"gopkg.in/yaml.v3"
)

const (
	lockFileName  = "state.lock.yaml"
	eventFileName = "events.jsonl"
)

// StateWriteError reports a failure opening, loading or persisting a
// machine's lock or event state.
// The executor treats this as fatal (spec.md §4.2, "Propagation policy").
type StateWriteError struct {
	Op  string
	Err error
}

func (e *StateWriteError) Error() string { return "state write (" + e.Op + "): " + e.Err.Error() }
func (e *StateWriteError) Unwrap() error { return e.Err }

// Store persists lock and event state for a single machine under
// <state-dir>/<machine>/.
type Store struct {
	machine string
	dir     string
}

// Open ensures the machine's state directory exists and returns a Store
// bound to it.
func Open(machine string) (*Store, error) {
	dir, err := paths.EnsureStatePath(machine)
	if err != nil {
		return nil, &StateWriteError{Op: "open", Err: err}
	}
	return &Store{machine: machine, dir: dir}, nil
}

// LockPath is the machine's lock file path.
func (s *Store) LockPath() string { return filepath.Join(s.dir, lockFileName) }

// EventLogPath is the machine's event log path.
func (s *Store) EventLogPath() string { return filepath.Join(s.dir, eventFileName) }

// LoadLock reads the machine's lock file, returning a fresh empty lock
// (not an error) if none exists yet.
func (s *Store) LoadLock(generatorVersion string) (*model.Lock, error) {
	b, err := os.ReadFile(s.LockPath())
	if os.IsNotExist(err) {
		return model.NewLock(s.machine, generatorVersion), nil
	}
	if err != nil {
		return nil, &StateWriteError{Op: "load_lock", Err: err}
	}
	var lock model.Lock
	if err := yaml.Unmarshal(b, &lock); err != nil {
		return nil, &StateWriteError{Op: "load_lock", Err: fmt.Errorf("decode %s: %w", s.LockPath(), err)}
	}
	if lock.Resources == nil {
		lock.Resources = map[string]model.LockEntry{}
	}
	return &lock, nil
}

// WriteLock atomically persists lock: serialize, write to a sibling
// temp file, fsync it, rename over the target, fsync the directory
// (spec.md §4.8).
func (s *Store) WriteLock(lock *model.Lock) error {
	b, err := yaml.Marshal(lock)
	if err != nil {
		return &StateWriteError{Op: "write_lock", Err: fmt.Errorf("encode: %w", err)}
	}
	if err := atomicWriteFile(s.LockPath(), b); err != nil {
		return &StateWriteError{Op: "write_lock", Err: err}
	}
	return nil
}
