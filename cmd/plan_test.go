//go:build unix

// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlanCmdReportsCreateForNewResource(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	stateDir := t.TempDir()

	c := NewPlanCmd()
	addCommonFlags(c)
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{"--state-dir", stateDir, path})
	if err := c.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buf.String(), "create") {
		t.Errorf("output = %q, want it to mention a create action", buf.String())
	}
}

func TestPlanCmdJSONOutput(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	stateDir := t.TempDir()

	c := NewPlanCmd()
	addCommonFlags(c)
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{"--state-dir", stateDir, "--json", path})
	if err := c.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buf.String(), `"resource_id"`) {
		t.Errorf("output = %q, want JSON plan steps", buf.String())
	}
}
