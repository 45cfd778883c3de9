// SPDX-License-Identifier: AGPL-3.0-or-later

package compile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forjar-dev/forjar/internal/model"
)

const recipeYAML = `
name: webapp
inputs:
  pkg_name:
    type: string
    required: true
resources:
  install:
    type: package
    provider: apt
    packages: ["{{inputs.pkg_name}}"]
    state: present
  configure:
    type: file
    path: /etc/webapp.conf
    content: "listen {{params.port}}"
    state: file
    depends_on: [install]
`

func writeRecipe(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "webapp.recipe.yaml")
	if err := os.WriteFile(path, []byte(recipeYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigExpandsRecipeAndSubstitutesParams(t *testing.T) {
	dir := t.TempDir()
	recipePath := writeRecipe(t, dir)

	cfg := &model.Config{
		Version:      model.SchemaVersion,
		Name:         "t",
		Params:       map[string]string{"port": "8080"},
		MachineOrder: []string{"web1"},
		Machines:     map[string]model.Machine{"web1": {ID: "web1", Addr: "127.0.0.1"}},
		Resources: map[string]model.Resource{
			"app": {
				ID: "app", Type: model.KindRecipe,
				Machine:      model.MachineRef{IDs: []string{"web1"}},
				RecipeSource: recipePath,
				Inputs:       map[string]interface{}{"pkg_name": "webapp"},
			},
			"firewall": {
				ID: "firewall", Type: model.KindPackage,
				Machine: model.MachineRef{IDs: []string{"web1"}},
				Provider: "apt", Packages: []string{"ufw"}, State: "present",
				DependsOn: []string{"app"},
			},
		},
		ResourceOrder: []string{"app", "firewall"},
	}

	out, err := Config(cfg)
	if err != nil {
		t.Fatalf("Config: %v", err)
	}

	install, ok := out.Resources["app/install"]
	if !ok {
		t.Fatalf("missing app/install, got %v", keys(out.Resources))
	}
	if install.Packages[0] != "webapp" {
		t.Errorf("Packages[0] = %q, want webapp", install.Packages[0])
	}
	if len(install.Machine.IDs) != 1 || install.Machine.IDs[0] != "web1" {
		t.Errorf("app/install.machine = %v, want [web1]", install.Machine.IDs)
	}

	configure, ok := out.Resources["app/configure"]
	if !ok {
		t.Fatalf("missing app/configure")
	}
	if configure.Content != "listen 8080" {
		t.Errorf("Content = %q, want %q", configure.Content, "listen 8080")
	}
	if len(configure.DependsOn) != 1 || configure.DependsOn[0] != "app/install" {
		t.Errorf("app/configure.depends_on = %v, want [app/install]", configure.DependsOn)
	}

	if _, ok := out.Resources["app"]; ok {
		t.Error("recipe instance \"app\" should have been removed after expansion")
	}

	firewall := out.Resources["firewall"]
	if len(firewall.DependsOn) != 1 || firewall.DependsOn[0] != "app/configure" {
		t.Errorf("firewall.depends_on = %v, want [app/configure] (rewired onto the bundle's exit point)", firewall.DependsOn)
	}
}

const secretRecipeYAML = `
name: webapp
inputs:
  api_token:
    type: string
    required: true
    secret: true
resources:
  configure:
    type: file
    path: /etc/webapp.token
    content: "{{inputs.api_token}}"
    state: file
`

func TestConfigAccumulatesSecretInputValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webapp.recipe.yaml")
	if err := os.WriteFile(path, []byte(secretRecipeYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &model.Config{
		Version:      model.SchemaVersion,
		Name:         "t",
		MachineOrder: []string{"web1"},
		Machines:     map[string]model.Machine{"web1": {ID: "web1", Addr: "127.0.0.1"}},
		Resources: map[string]model.Resource{
			"app": {
				ID: "app", Type: model.KindRecipe,
				Machine:      model.MachineRef{IDs: []string{"web1"}},
				RecipeSource: path,
				Inputs:       map[string]interface{}{"api_token": "s3cr3t-token"},
			},
		},
		ResourceOrder: []string{"app"},
	}

	out, err := Config(cfg)
	if err != nil {
		t.Fatalf("Config: %v", err)
	}

	if len(out.SecretValues) != 1 || out.SecretValues[0] != "s3cr3t-token" {
		t.Errorf("SecretValues = %v, want [s3cr3t-token]", out.SecretValues)
	}
}

func TestConfigRejectsUnresolvedParam(t *testing.T) {
	cfg := &model.Config{
		Version:      model.SchemaVersion,
		Name:         "t",
		MachineOrder: []string{"web1"},
		Machines:     map[string]model.Machine{"web1": {ID: "web1", Addr: "127.0.0.1"}},
		Resources: map[string]model.Resource{
			"pkg": {
				ID: "pkg", Type: model.KindPackage,
				Machine: model.MachineRef{IDs: []string{"web1"}},
				Provider: "apt", Packages: []string{"{{params.missing}}"}, State: "present",
			},
		},
		ResourceOrder: []string{"pkg"},
	}

	if _, err := Config(cfg); err == nil {
		t.Fatal("expected TemplateError for unresolved placeholder")
	}
}

func TestConfigRejectsInvalidConfig(t *testing.T) {
	cfg := &model.Config{Version: "0.9", Name: ""}
	if _, err := Config(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func keys(m map[string]model.Resource) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
