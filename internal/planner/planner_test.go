// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"testing"

	"github.com/forjar-dev/forjar/internal/model"
)

func TestDiffClassifiesCreateUpdateNoop(t *testing.T) {
	resources := map[string]model.Resource{
		"pkg": {ID: "pkg", Type: model.KindPackage, Provider: "apt", Packages: []string{"curl"}, State: "present", Machine: model.MachineRef{IDs: []string{"web1"}}},
	}
	order := []string{"pkg"}

	plan, err := Diff(resources, order, "web1", nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if plan.Steps[0].Action != model.ActionCreate {
		t.Fatalf("action = %v, want create", plan.Steps[0].Action)
	}

	lock := model.NewLock("web1", "test")
	lock.Resources["pkg"] = model.LockEntry{Kind: model.KindPackage, DesiredHash: plan.Steps[0].DesiredHash}

	plan2, err := Diff(resources, order, "web1", lock)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if plan2.Steps[0].Action != model.ActionNoop {
		t.Fatalf("action = %v, want noop", plan2.Steps[0].Action)
	}

	resources["pkg"] = model.Resource{ID: "pkg", Type: model.KindPackage, Provider: "apt", Packages: []string{"curl", "wget"}, State: "present", Machine: model.MachineRef{IDs: []string{"web1"}}}
	plan3, err := Diff(resources, order, "web1", lock)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if plan3.Steps[0].Action != model.ActionUpdate {
		t.Fatalf("action = %v, want update", plan3.Steps[0].Action)
	}
}

func TestDiffDestroyOnAbsentWithExistingEntry(t *testing.T) {
	resources := map[string]model.Resource{
		"f": {ID: "f", Type: model.KindFile, Path: "/tmp/x", State: "absent", Machine: model.MachineRef{IDs: []string{"web1"}}},
	}
	lock := model.NewLock("web1", "test")
	lock.Resources["f"] = model.LockEntry{Kind: model.KindFile, DesiredHash: "sha256:deadbeef"}

	plan, err := Diff(resources, []string{"f"}, "web1", lock)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if plan.Steps[0].Action != model.ActionDestroy {
		t.Fatalf("action = %v, want destroy", plan.Steps[0].Action)
	}
}

func TestHashIgnoresPackageOrder(t *testing.T) {
	r1 := model.Resource{ID: "a", Type: model.KindPackage, Provider: "apt", Packages: []string{"a", "b"}, State: "present"}
	r2 := model.Resource{ID: "a", Type: model.KindPackage, Provider: "apt", Packages: []string{"b", "a"}, State: "present"}

	h1 := NewHasher(map[string]model.Resource{"a": r1})
	h2 := NewHasher(map[string]model.Resource{"a": r2})

	d1, err := h1.Hash("a")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	d2, err := h2.Hash("a")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if d1 != d2 {
		t.Errorf("hashes differ for cosmetically reordered packages: %s vs %s", d1, d2)
	}
}

func TestServiceHashIncludesRestartOn(t *testing.T) {
	resources := map[string]model.Resource{
		"svc": {ID: "svc", Type: model.KindService, Name: "nginx", State: "running", RestartOn: []string{"conf"}},
		"conf": {ID: "conf", Type: model.KindFile, Path: "/etc/nginx.conf", Content: "v1", State: "file"},
	}
	h := NewHasher(resources)
	d1, err := h.Hash("svc")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	resources2 := map[string]model.Resource{
		"svc": {ID: "svc", Type: model.KindService, Name: "nginx", State: "running", RestartOn: []string{"conf"}},
		"conf": {ID: "conf", Type: model.KindFile, Path: "/etc/nginx.conf", Content: "v2", State: "file"},
	}
	h2 := NewHasher(resources2)
	d2, err := h2.Hash("svc")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if d1 == d2 {
		t.Error("service hash did not change when restart_on target's content changed")
	}
}
