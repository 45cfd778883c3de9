// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package transport

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/forjar-dev/forjar/internal/model"
)

// Remote executes a script on a non-local machine by spawning the ssh
// client binary as a subprocess with non-interactive options, piping the
// script to its standard input (spec.md §4.7). It never links an SSH
// client library; ssh itself owns authentication and host-key handling.
type Remote struct {
	Options RemoteOptions
}

// Execute dials machine over ssh and runs script on its remote shell.
func (r Remote) Execute(ctx context.Context, machine model.Machine, script string) (Result, error) {
	opts := r.Options.withDefaults()

	args := []string{
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(opts.ConnectTimeout.Seconds())),
		"-o", "StrictHostKeyChecking=accept-new",
	}
	if machine.SSHKey != "" {
		args = append(args, "-i", machine.SSHKey)
	}
	args = append(args, fmt.Sprintf("%s@%s", machine.EffectiveUser(), machine.Addr), opts.Shell)

	return runPiped(ctx, machine.ID, exec.Command(opts.SSHBinary, args...), script)
}
