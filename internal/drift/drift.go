// SPDX-License-Identifier: AGPL-3.0-or-later

// Package drift recomputes each declared resource's desired-state hash
// and compares it against the stored lock, without executing any
// convergence (spec.md §4.10).
package drift

import (
	"context"
	"fmt"
	"os"

	"github.com/forjar-dev/forjar/internal/hashcache"
	"github.com/forjar-dev/forjar/internal/metrics"
	"github.com/forjar-dev/forjar/internal/model"
	"github.com/forjar-dev/forjar/internal/paths"
	"github.com/forjar-dev/forjar/internal/planner"
	"github.com/forjar-dev/forjar/internal/resolver"
	"github.com/forjar-dev/forjar/internal/statestore"
)

// Classification is a single resource's drift status relative to its
// machine's lock.
type Classification string

const (
	ClassOK            Classification = "ok"
	ClassDrifted       Classification = "drifted"
	ClassMissingInLock Classification = "missing_in_lock"
	ClassStaleInLock   Classification = "stale_in_lock"
)

// Finding is one resource (or stale lock entry)'s classification on one
// machine.
type Finding struct {
	Machine        string
	ResourceID     string
	Classification Classification
}

// Report is the full drift check across every machine present in either
// the config or the state directory.
type Report struct {
	Findings []Finding
}

// Drifted reports whether any finding is not ClassOK, the condition
// tripwire mode exits non-zero on.
func (r *Report) Drifted() bool {
	for _, f := range r.Findings {
		if f.Classification != ClassOK {
			return true
		}
	}
	return false
}

// Check recomputes the desired-state hash for every resource targeting
// every machine named by cfg or present in the state directory, and
// diffs it against that machine's lock. Equivalent to CheckWithCache with
// no file-content cache.
func Check(cfg *model.Config) (*Report, error) {
	return CheckWithCache(context.Background(), cfg, nil)
}

// CheckWithCache is Check, consulting cache for source-backed file
// resources' content digests instead of always re-reading the file. cache
// may be nil.
func CheckWithCache(ctx context.Context, cfg *model.Config, cache *hashcache.Cache) (*Report, error) {
	ids := make([]string, 0, len(cfg.Resources))
	for id := range cfg.Resources {
		ids = append(ids, id)
	}
	order, err := resolver.TopoSort(cfg.Resources, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving order: %w", err)
	}

	machines, err := machineIDs(cfg)
	if err != nil {
		return nil, fmt.Errorf("enumerating machines: %w", err)
	}

	report := &Report{}
	for _, machine := range machines {
		store, err := statestore.Open(machine)
		if err != nil {
			return nil, fmt.Errorf("machine %s: open state store: %w", machine, err)
		}
		lock, err := store.LoadLock("")
		if err != nil {
			return nil, fmt.Errorf("machine %s: load lock: %w", machine, err)
		}

		hasher := planner.NewHasherWithCache(ctx, cfg.Resources, cache)
		current := map[string]bool{}

		for _, id := range order {
			r := cfg.Resources[id]
			if !planner.TargetsMachine(r, machine) {
				continue
			}
			current[id] = true

			digest, err := hasher.Hash(id)
			if err != nil {
				return nil, fmt.Errorf("machine %s: hash %s: %w", machine, id, err)
			}

			entry, ok := lock.Resources[id]
			var class Classification
			switch {
			case !ok:
				class = ClassMissingInLock
			case entry.DesiredHash != string(digest):
				class = ClassDrifted
			default:
				class = ClassOK
			}
			metrics.DriftResourcesTotal.WithLabelValues(string(class)).Inc()
			report.Findings = append(report.Findings, Finding{Machine: machine, ResourceID: id, Classification: class})
		}

		for id := range lock.Resources {
			if current[id] {
				continue
			}
			metrics.DriftResourcesTotal.WithLabelValues(string(ClassStaleInLock)).Inc()
			report.Findings = append(report.Findings, Finding{Machine: machine, ResourceID: id, Classification: ClassStaleInLock})
		}
	}

	return report, nil
}

// machineIDs returns the union of machines declared in cfg and machine
// directories already present under the state directory, since a
// machine dropped from the config can still carry stale lock state
// (spec.md §4.10, "for each machine present in the config or the state
// directory").
func machineIDs(cfg *model.Config) ([]string, error) {
	seen := make(map[string]bool, len(cfg.Machines))
	ids := make([]string, 0, len(cfg.Machines))
	for _, id := range cfg.MachineOrder {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	entries, err := os.ReadDir(paths.StateDir())
	if err != nil {
		if os.IsNotExist(err) {
			return ids, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "cache" {
			continue
		}
		if !seen[e.Name()] {
			seen[e.Name()] = true
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
