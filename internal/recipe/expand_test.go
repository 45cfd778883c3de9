// SPDX-License-Identifier: AGPL-3.0-or-later

package recipe

import (
	"testing"

	"github.com/forjar-dev/forjar/internal/model"
)

func TestExpandNamespacesAndWiresSite(t *testing.T) {
	doc := &Doc{
		Name: "pair",
		Resources: map[string]model.Resource{
			"x": {Type: model.KindPackage, Provider: "apt", Packages: []string{"curl"}},
			"y": {Type: model.KindFile, Path: "/etc/x", DependsOn: []string{"x"}},
		},
	}

	site := model.MachineRef{IDs: []string{"web1"}}
	expanded, err := Expand("r", doc, nil, site, []string{"ext"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	if len(expanded) != 2 {
		t.Fatalf("want 2 resources, got %d", len(expanded))
	}

	rx, ok := expanded["r/x"]
	if !ok {
		t.Fatalf("missing r/x")
	}
	ry, ok := expanded["r/y"]
	if !ok {
		t.Fatalf("missing r/y")
	}

	if len(ry.DependsOn) != 1 || ry.DependsOn[0] != "r/x" {
		t.Errorf("r/y.depends_on = %v, want [r/x]", ry.DependsOn)
	}

	// Every inner resource receives the site's machine; r/x is first in
	// topological order, so it also receives the external depends_on
	// (spec.md S7).
	if len(rx.Machine.IDs) != 1 || rx.Machine.IDs[0] != "web1" {
		t.Errorf("r/x.machine = %v, want [web1]", rx.Machine.IDs)
	}
	foundExt := false
	for _, d := range rx.DependsOn {
		if d == "ext" {
			foundExt = true
		}
	}
	if !foundExt {
		t.Errorf("r/x.depends_on = %v, want to contain ext", rx.DependsOn)
	}
}

func TestExpandSubstitutesInputs(t *testing.T) {
	doc := &Doc{
		Name: "pkg",
		Inputs: map[string]InputSpec{
			"name": {Type: InputString, Required: true},
		},
		Resources: map[string]model.Resource{
			"install": {Type: model.KindPackage, Provider: "apt", Packages: []string{"{{inputs.name}}"}},
		},
	}

	resolved, err := ResolveInputs(doc.Inputs, map[string]interface{}{"name": "nginx"})
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}

	expanded, err := Expand("web", doc, resolved, model.MachineRef{IDs: []string{"web1"}}, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	got := expanded["web/install"].Packages[0]
	if got != "nginx" {
		t.Errorf("Packages[0] = %q, want nginx", got)
	}
}

func TestResolveInputsRejectsMissingRequired(t *testing.T) {
	spec := map[string]InputSpec{"name": {Type: InputString, Required: true}}
	if _, err := ResolveInputs(spec, nil); err == nil {
		t.Fatal("expected InputMissing error")
	} else if rerr, ok := err.(*Error); !ok || rerr.Kind != InputMissing {
		t.Errorf("got %v, want InputMissing", err)
	}
}

func TestResolveInputsAppliesDefault(t *testing.T) {
	spec := map[string]InputSpec{"port": {Type: InputInteger, Default: int64(8080)}}
	resolved, err := ResolveInputs(spec, nil)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if resolved["port"] != int64(8080) {
		t.Errorf("port = %v, want 8080", resolved["port"])
	}
}

func TestResolveInputsEnumViolation(t *testing.T) {
	spec := map[string]InputSpec{"level": {Type: InputEnum, Enum: []string{"low", "high"}}}
	if _, err := ResolveInputs(spec, map[string]interface{}{"level": "medium"}); err == nil {
		t.Fatal("expected EnumViolation error")
	} else if rerr, ok := err.(*Error); !ok || rerr.Kind != EnumViolation {
		t.Errorf("got %v, want EnumViolation", err)
	}
}
