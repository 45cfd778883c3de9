// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/forjar-dev/forjar/internal/compile"
	"github.com/forjar-dev/forjar/internal/paths"
	"github.com/forjar-dev/forjar/internal/statestore"
	"github.com/spf13/cobra"
)

// NewStatusCmd prints each machine's stored lock: the last known
// convergence outcome per resource, independent of the current config
// document (spec.md §3, "Lock").
func NewStatusCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "status [config.yaml]",
		Short: "Show each machine's last recorded convergence state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyStateDirOverride(cmd); err != nil {
				return err
			}

			machines, err := statusMachineIDs(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, machineID := range machines {
				store, err := statestore.Open(machineID)
				if err != nil {
					return fmt.Errorf("machine %s: %w", machineID, err)
				}
				lock, err := store.LoadLock("")
				if err != nil {
					return fmt.Errorf("machine %s: %w", machineID, err)
				}
				fmt.Fprintf(out, "machine %s:\n", machineID)
				if len(lock.Resources) == 0 {
					fmt.Fprintln(out, "  (no recorded resources)")
					continue
				}
				ids := make([]string, 0, len(lock.Resources))
				for id := range lock.Resources {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					entry := lock.Resources[id]
					fmt.Fprintf(out, "  %s [%s] %s converged_at=%s\n",
						id, entry.Kind, entry.Status, entry.ConvergedAt.Format("2006-01-02T15:04:05Z"))
				}
			}
			return nil
		},
	}
	return c
}

func statusMachineIDs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var ids []string

	if len(args) == 1 {
		cfg, err := compile.Load(args[0])
		if err != nil {
			return nil, err
		}
		for _, id := range cfg.MachineOrder {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	entries, err := os.ReadDir(paths.StateDir())
	if err != nil {
		if os.IsNotExist(err) {
			sort.Strings(ids)
			return ids, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "cache" {
			continue
		}
		if !seen[e.Name()] {
			seen[e.Name()] = true
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
