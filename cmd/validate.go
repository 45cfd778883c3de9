// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"fmt"

	"github.com/forjar-dev/forjar/internal/compile"
	"github.com/spf13/cobra"
)

// NewValidateCmd parses and fully expands a config document, reporting
// every structural or referential error rather than stopping at the
// first (spec.md §4.2).
func NewValidateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a config document, including recipe expansion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyStateDirOverride(cmd); err != nil {
				return err
			}
			cfg, err := compile.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d resource(s) across %d machine(s))\n",
				args[0], len(cfg.Resources), len(cfg.Machines))
			return nil
		},
	}
	return c
}
