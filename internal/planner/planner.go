// SPDX-License-Identifier: AGPL-3.0-or-later

// Package planner computes per-resource desired-state hashes and diffs
// them against a machine's stored lock to produce a Plan (spec.md §4.5).
package planner

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"time"

	"github.com/forjar-dev/forjar/internal/hashcache"
	"github.com/forjar-dev/forjar/internal/hashutil"
	"github.com/forjar-dev/forjar/internal/metrics"
	"github.com/forjar-dev/forjar/internal/model"
)

// HashError reports a failure computing a resource's desired-state hash,
// e.g. an unreadable file source.
type HashError struct {
	ResourceID string
	Err        error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("resources.%s: hash: %v", e.ResourceID, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// Hasher computes and memoizes desired-state digests for a resource set,
// resolving a service's restart_on references on demand regardless of
// resolver order.
type Hasher struct {
	ctx       context.Context
	resources map[string]model.Resource
	digests   map[string]hashutil.Digest
	visiting  map[string]bool

	// fileCache memoizes source-backed file content digests across runs,
	// keyed on path plus size and mtime. Nil means every source file is
	// re-read and re-hashed, which is always correct, just slower.
	fileCache *hashcache.Cache
}

// NewHasher returns a Hasher over resources with no file-content cache.
func NewHasher(resources map[string]model.Resource) *Hasher {
	return NewHasherWithCache(context.Background(), resources, nil)
}

// NewHasherWithCache returns a Hasher that consults cache for source-backed
// file resources' content digests instead of always re-reading the file
// (spec.md §4.1, "Hash memoization cache"). cache may be nil.
func NewHasherWithCache(ctx context.Context, resources map[string]model.Resource, cache *hashcache.Cache) *Hasher {
	return &Hasher{
		ctx:       ctx,
		resources: resources,
		digests:   map[string]hashutil.Digest{},
		visiting:  map[string]bool{},
		fileCache: cache,
	}
}

// Hash returns the desired-state digest for id, computing and memoizing
// it (and any restart_on dependencies) on first request.
func (h *Hasher) Hash(id string) (hashutil.Digest, error) {
	if d, ok := h.digests[id]; ok {
		return d, nil
	}
	if h.visiting[id] {
		return "", &HashError{ResourceID: id, Err: fmt.Errorf("restart_on cycle")}
	}
	r, ok := h.resources[id]
	if !ok {
		return "", &HashError{ResourceID: id, Err: fmt.Errorf("unknown resource")}
	}

	h.visiting[id] = true
	defer delete(h.visiting, id)

	d, err := h.hashResource(r)
	if err != nil {
		return "", err
	}
	h.digests[id] = d
	return d, nil
}

func (h *Hasher) hashResource(r model.Resource) (hashutil.Digest, error) {
	switch r.Type {
	case model.KindPackage:
		packages := append([]string{}, r.Packages...)
		sort.Strings(packages)
		return hashutil.Fields(append([]string{r.Provider}, append(packages, r.State)...)...), nil

	case model.KindFile:
		contentDigest, err := h.fileContentDigest(r)
		if err != nil {
			return "", &HashError{ResourceID: r.ID, Err: err}
		}
		return hashutil.Fields(r.State, r.Path, string(contentDigest), r.Owner, r.Group, r.Mode, r.Target), nil

	case model.KindService:
		restartHashes := make([]string, 0, len(r.RestartOn))
		for _, dep := range r.RestartOn {
			d, err := h.Hash(dep)
			if err != nil {
				return "", err
			}
			restartHashes = append(restartHashes, string(d))
		}
		sort.Strings(restartHashes)
		enabled := ""
		if r.Enabled != nil {
			enabled = strconv.FormatBool(*r.Enabled)
		}
		return hashutil.Fields(append([]string{r.Name, r.State, enabled}, restartHashes...)...), nil

	case model.KindMount:
		return hashutil.Fields(r.Path, r.Target, r.FSType, r.Options, r.State), nil

	default:
		return "", &HashError{ResourceID: r.ID, Err: fmt.Errorf("unhashable kind %q", r.Type)}
	}
}

// fileContentDigest hashes a file resource's declared content, consulting
// h.fileCache for source-backed content so an unchanged source file on
// disk is not re-read on every plan/apply/drift pass.
func (h *Hasher) fileContentDigest(r model.Resource) (hashutil.Digest, error) {
	switch {
	case r.Content != "":
		return hashutil.Bytes([]byte(r.Content)), nil
	case r.Source != "":
		if h.fileCache != nil {
			return h.fileCache.File(h.ctx, r.Source)
		}
		return hashutil.File(r.Source)
	default:
		return "", nil
	}
}

// Diff computes the per-machine Plan for resources in the given
// topological order, comparing each resource's desired hash against the
// lock's stored entry (spec.md §4.5). Equivalent to DiffWithCache with no
// file-content cache.
func Diff(resources map[string]model.Resource, order []string, machine string, lock *model.Lock) (*model.Plan, error) {
	return DiffWithCache(context.Background(), resources, order, machine, lock, nil)
}

// DiffWithCache is Diff, consulting cache for source-backed file resources'
// content digests instead of always re-reading the file. cache may be nil.
func DiffWithCache(ctx context.Context, resources map[string]model.Resource, order []string, machine string, lock *model.Lock, cache *hashcache.Cache) (*model.Plan, error) {
	hasher := NewHasherWithCache(ctx, resources, cache)
	plan := &model.Plan{}

	for _, id := range order {
		r := resources[id]
		if !targetsMachine(r, machine) {
			continue
		}
		start := time.Now()
		digest, err := hasher.Hash(id)
		metrics.PlanStepDuration.WithLabelValues(string(r.Type)).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}

		var previous string
		var existed bool
		if lock != nil {
			if entry, ok := lock.Resources[id]; ok {
				previous = entry.DesiredHash
				existed = true
			}
		}

		action := classify(r, string(digest), previous, existed)
		metrics.PlanActionsTotal.WithLabelValues(string(r.Type), string(action)).Inc()
		plan.Steps = append(plan.Steps, model.PlanStep{
			ResourceID:   id,
			Machine:      machine,
			Action:       action,
			DesiredHash:  string(digest),
			PreviousHash: previous,
		})
	}

	return plan, nil
}

// TargetsMachine reports whether r's machine field names machine, either
// directly or as one entry of a sequence (spec.md §3, "Resource").
// Exported for the drift detector, which needs the same per-machine
// filter outside of a Diff call.
func TargetsMachine(r model.Resource, machine string) bool {
	for _, id := range r.Machine.IDs {
		if id == machine {
			return true
		}
	}
	return false
}

func targetsMachine(r model.Resource, machine string) bool {
	return TargetsMachine(r, machine)
}

func classify(r model.Resource, desired, previous string, existed bool) model.Action {
	if r.State == "absent" && existed {
		return model.ActionDestroy
	}
	switch {
	case !existed:
		return model.ActionCreate
	case previous != desired:
		return model.ActionUpdate
	default:
		return model.ActionNoop
	}
}
