// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package transport

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/forjar-dev/forjar/internal/model"
)

// Local executes a script via the system shell for addresses in
// {127.0.0.1, localhost}: the script is piped to the shell's standard
// input, never passed via "-c" with a concatenated string (spec.md §4.7).
type Local struct {
	// Shell is the local interpreter invoked with the script on stdin.
	// Defaults to "/bin/bash": codegen's generated scripts rely on
	// "set -o pipefail", which dash (a common /bin/sh) rejects.
	Shell string
}

// Execute runs script through l.Shell, killing the whole process group if
// ctx is canceled or its deadline elapses.
func (l Local) Execute(ctx context.Context, machine model.Machine, script string) (Result, error) {
	shell := l.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	return runPiped(ctx, machine.ID, exec.Command(shell), script)
}

// runPiped starts cmd with script on its standard input and waits for it
// to finish, killing its entire process group (established via Setpgid)
// on context cancellation. Shared by Local and Remote since both are
// "pipe a script to an interpreter's stdin and wait" with identical
// timeout-kill semantics (spec.md §4.7).
func runPiped(ctx context.Context, machineID string, cmd *exec.Cmd, script string) (Result, error) {
	start := time.Now()
	cmd.Stdin = bytes.NewBufferString(script)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, &TransportError{Machine: machineID, Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		timeout := time.Duration(0)
		if deadline, ok := ctx.Deadline(); ok {
			timeout = deadline.Sub(start)
		}
		return Result{Duration: time.Since(start)}, &TransportTimeout{Machine: machineID, Timeout: timeout}

	case err := <-done:
		res := Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		if err == nil {
			res.ExitCode = 0
			return res, nil
		}
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, &TransportError{Machine: machineID, Err: err}
	}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// killProcessGroup sends SIGKILL to cmd's entire process group, which was
// established via Setpgid at start time so a timed-out script's children
// cannot outlive it.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
