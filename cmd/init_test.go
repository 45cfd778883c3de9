// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestInitCmdWritesStarterConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forjar.yaml")

	c := NewInitCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{path})
	if err := c.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected a non-empty starter config")
	}
}

func TestInitCmdRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forjar.yaml")
	if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewInitCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{path})
	if err := c.Execute(); err == nil {
		t.Fatal("expected an error when the target file already exists")
	}
}
