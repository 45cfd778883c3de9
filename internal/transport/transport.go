// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport dispatches rendered shell scripts to a machine, either
// via a local shell subprocess or over SSH (spec.md §4.7).
package transport

import (
	"context"
	"time"

	"github.com/forjar-dev/forjar/internal/model"
)

// Result is the outcome of executing a script on a machine.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// TransportError reports a network, authentication, or process-launch
// failure unrelated to the script's own exit status.
type TransportError struct {
	Machine string
	Err     error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Machine + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransportTimeout reports that a script's execution was killed after
// exceeding its allotted duration.
type TransportTimeout struct {
	Machine string
	Timeout time.Duration
}

func (e *TransportTimeout) Error() string {
	return "transport: " + e.Machine + ": timed out after " + e.Timeout.String()
}

// Transport dispatches a rendered script to a machine and reports its
// outcome. Implementations never interpolate the script into a command
// line; it is always piped to the interpreter's standard input.
type Transport interface {
	Execute(ctx context.Context, machine model.Machine, script string) (Result, error)
}

// ForMachine selects Local or Remote based on the machine's address.
func ForMachine(m model.Machine, opts RemoteOptions) Transport {
	if m.IsLocal() {
		return Local{}
	}
	return Remote{Options: opts}
}

// RemoteOptions configures the ssh subprocess used by Remote.
type RemoteOptions struct {
	// SSHBinary is the ssh client executable name or path. Defaults to "ssh".
	SSHBinary string
	// ConnectTimeout bounds the SSH connection phase. Defaults to 10s.
	ConnectTimeout time.Duration
	// Shell is the remote interpreter invoked as the sole remote command
	// word. Defaults to "/bin/bash": codegen's generated scripts rely on
	// "set -o pipefail", which dash (a common /bin/sh) rejects.
	Shell string
}

func (o RemoteOptions) withDefaults() RemoteOptions {
	if o.SSHBinary == "" {
		o.SSHBinary = "ssh"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.Shell == "" {
		o.Shell = "/bin/bash"
	}
	return o
}
