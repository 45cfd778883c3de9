// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"fmt"

	"github.com/forjar-dev/forjar/internal/compile"
	"github.com/forjar-dev/forjar/internal/events"
	"github.com/forjar-dev/forjar/internal/executor"
	"github.com/forjar-dev/forjar/internal/transport"
	"github.com/spf13/cobra"
)

// NewApplyCmd converges every machine declared by a config document
// (spec.md §4.9).
func NewApplyCmd() *cobra.Command {
	var dryRun, force bool
	var sshBinary, remoteShell string
	c := &cobra.Command{
		Use:   "apply <config.yaml>",
		Short: "Converge every targeted machine to the desired state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyStateDirOverride(cmd); err != nil {
				return err
			}
			cfg, err := compile.Load(args[0])
			if err != nil {
				return err
			}

			var sink events.Sink
			if verbosity(cmd) > 0 {
				sink = events.NewWriter(cmd.OutOrStdout())
			}

			cache, closeCache := openHashCache(cmd.Context())
			defer closeCache()

			result, err := executor.Apply(cmd.Context(), cfg, executor.Options{
				DryRun: dryRun,
				Force:  force,
				Sink:   sink,
				Cache:  cache,
				RemoteOptions: transport.RemoteOptions{
					SSHBinary: sshBinary,
					Shell:     remoteShell,
				},
			})
			if err != nil {
				return err
			}

			for _, mr := range result.Machines {
				fmt.Fprintf(cmd.OutOrStdout(), "machine %s: %d converged, %d noop, %d failed, %d skipped\n",
					mr.Machine, mr.Converged, mr.Noop, mr.Failed, mr.Skipped)
			}
			if result.HasFailures() {
				return fmt.Errorf("apply %s: one or more resources failed to converge", args[0])
			}
			return nil
		},
	}
	c.Flags().BoolVar(&dryRun, "dry-run", false, "Render and plan without dispatching or persisting state")
	c.Flags().BoolVar(&force, "force", false, "Re-apply every targeted resource, including ones already converged")
	c.Flags().StringVar(&sshBinary, "ssh-binary", "", "SSH client binary for remote machines (default ssh)")
	c.Flags().StringVar(&remoteShell, "remote-shell", "", "Remote interpreter invoked over SSH (default /bin/bash)")
	return c
}
