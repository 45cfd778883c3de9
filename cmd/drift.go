// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/forjar-dev/forjar/internal/compile"
	"github.com/forjar-dev/forjar/internal/drift"
	"github.com/spf13/cobra"
)

// NewDriftCmd re-hashes the desired state declared by a config document
// and compares it to each machine's stored lock, without converging
// anything (spec.md §4.10).
func NewDriftCmd() *cobra.Command {
	var asJSON, tripwire bool
	c := &cobra.Command{
		Use:   "drift <config.yaml>",
		Short: "Report drift between desired state and the stored lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyStateDirOverride(cmd); err != nil {
				return err
			}
			cfg, err := compile.Load(args[0])
			if err != nil {
				return err
			}

			cache, closeCache := openHashCache(cmd.Context())
			defer closeCache()

			report, err := drift.CheckWithCache(cmd.Context(), cfg, cache)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, f := range report.Findings {
					fmt.Fprintf(out, "%s %s: %s\n", f.Machine, f.ResourceID, f.Classification)
				}
				if len(report.Findings) == 0 {
					fmt.Fprintln(out, "no resources declared")
				}
			}

			effectiveTripwire := tripwire
			if !cmd.Flags().Changed("tripwire") {
				effectiveTripwire = cfg.Policy.Tripwire()
			}
			if effectiveTripwire && report.Drifted() {
				return fmt.Errorf("drift detected")
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Output the drift report as JSON")
	c.Flags().BoolVar(&tripwire, "tripwire", false, "Exit non-zero when any resource has drifted")
	return c
}
