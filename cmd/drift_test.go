//go:build unix

// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestDriftCmdReportsMissingInLockAndTripwireExits(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	stateDir := t.TempDir()

	c := NewDriftCmd()
	addCommonFlags(c)
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{"--state-dir", stateDir, "--tripwire", path})
	err := c.Execute()
	if err == nil {
		t.Fatal("expected tripwire to exit non-zero on drift")
	}
	if !strings.Contains(buf.String(), "missing_in_lock") {
		t.Errorf("output = %q, want it to mention missing_in_lock", buf.String())
	}
}

func TestDriftCmdWithoutTripwireSucceeds(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	stateDir := t.TempDir()

	c := NewDriftCmd()
	addCommonFlags(c)
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{"--state-dir", stateDir, path})
	if err := c.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
