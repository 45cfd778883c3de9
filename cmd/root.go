// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/forjar-dev/forjar/internal/hashcache"
	"github.com/forjar-dev/forjar/internal/paths"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "forjar",
	Short: "Declarative convergence engine for a fleet of machines",
}

// Execute runs the forjar CLI, exiting the process non-zero on error.
func Execute() {
	addCommonFlags(rootCmd)

	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewPlanCmd())
	rootCmd.AddCommand(NewApplyCmd())
	rootCmd.AddCommand(NewDriftCmd())
	rootCmd.AddCommand(NewStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addCommonFlags registers the flags every subcommand shares, following
// the teacher's rootCmd persistent-flag convention.
func addCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().CountP("verbose", "v", "Increase verbosity")
	cmd.PersistentFlags().String("state-dir", "", "Override the state directory (lock files, event logs, hash cache)")
}

// applyStateDirOverride reads the --state-dir flag (walking up to a
// parent command if necessary) and pins paths.StateDir for the rest of
// this process.
func applyStateDirOverride(cmd *cobra.Command) error {
	dir, err := cmd.Flags().GetString("state-dir")
	if err != nil {
		return err
	}
	paths.SetStateDirOverride(dir)
	return nil
}

func verbosity(cmd *cobra.Command) int {
	v, _ := cmd.Flags().GetCount("verbose")
	return v
}

// openHashCache best-effort opens the shared file-content hash cache under
// the current state directory. Callers treat a nil return (open failed) as
// "proceed uncached": the cache only memoizes source-file digests, it is
// never the source of truth for a resource's desired state.
func openHashCache(ctx context.Context) (*hashcache.Cache, func()) {
	cache, err := hashcache.Open(ctx, hashcache.Options{})
	if err != nil {
		return nil, func() {}
	}
	return cache, func() { _ = cache.Close() }
}
