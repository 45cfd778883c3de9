// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const validConfigYAML = `
version: "1.0"
name: t
machines:
  web1:
    hostname: web1
    addr: 127.0.0.1
resources:
  curl:
    type: package
    machine: web1
    provider: apt
    packages: ["curl"]
    state: present
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateCmdAcceptsValidConfig(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	c := NewValidateCmd()
	addCommonFlags(c)
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{path})
	if err := c.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected a summary line on success")
	}
}

func TestValidateCmdRejectsUndeclaredMachine(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
name: t
machines: {}
resources:
  curl:
    type: package
    machine: ghost
    provider: apt
    packages: ["curl"]
    state: present
`)

	c := NewValidateCmd()
	addCommonFlags(c)
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{path})
	if err := c.Execute(); err == nil {
		t.Fatal("expected a validation error for an undeclared machine")
	}
}
