// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/forjar-dev/forjar/internal/model"
)

func TestLocalExecuteCapturesStdoutAndExitCode(t *testing.T) {
	l := Local{}
	machine := model.Machine{ID: "web1", Addr: "127.0.0.1"}

	res, err := l.Execute(context.Background(), machine, "echo hello\nexit 0\n")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "hello") {
		t.Errorf("Stdout = %q, want to contain hello", res.Stdout)
	}
}

func TestLocalExecuteNonZeroExit(t *testing.T) {
	l := Local{}
	machine := model.Machine{ID: "web1", Addr: "127.0.0.1"}

	res, err := l.Execute(context.Background(), machine, "exit 3\n")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestLocalExecuteTimeout(t *testing.T) {
	l := Local{}
	machine := model.Machine{ID: "web1", Addr: "127.0.0.1"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := l.Execute(ctx, machine, "sleep 5\n")
	if err == nil {
		t.Fatal("expected TransportTimeout")
	}
	if _, ok := err.(*TransportTimeout); !ok {
		t.Fatalf("got %T, want *TransportTimeout", err)
	}
}

func TestLocalExecuteNeverUsesShellDashC(t *testing.T) {
	// Script content that would be dangerous if concatenated into a "-c"
	// string is instead piped safely via stdin.
	l := Local{}
	machine := model.Machine{ID: "web1", Addr: "127.0.0.1"}
	script := "VALUE='$(whoami); rm -rf /'\necho \"$VALUE\"\n"
	res, err := l.Execute(context.Background(), machine, script)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Stdout, "$(whoami); rm -rf /") {
		t.Errorf("Stdout = %q, want literal value unexpanded by a second shell layer", res.Stdout)
	}
}
