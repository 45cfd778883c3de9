// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/forjar-dev/forjar/internal/compile"
	"github.com/forjar-dev/forjar/internal/executor"
	"github.com/forjar-dev/forjar/internal/model"
	"github.com/forjar-dev/forjar/internal/planner"
	"github.com/forjar-dev/forjar/internal/resolver"
	"github.com/forjar-dev/forjar/internal/statestore"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// NewPlanCmd previews the actions an apply would take, per machine,
// without dispatching anything (spec.md §4.5).
func NewPlanCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "plan <config.yaml>",
		Short: "Preview the convergence plan for every machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyStateDirOverride(cmd); err != nil {
				return err
			}
			cfg, err := compile.Load(args[0])
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(cfg.Resources))
			for id := range cfg.Resources {
				ids = append(ids, id)
			}
			order, err := resolver.TopoSort(cfg.Resources, ids)
			if err != nil {
				return err
			}

			cache, closeCache := openHashCache(cmd.Context())
			defer closeCache()

			plans := map[string]*planFor{}
			var planOrder []string
			for _, machineID := range cfg.MachineOrder {
				store, err := statestore.Open(machineID)
				if err != nil {
					return fmt.Errorf("machine %s: %w", machineID, err)
				}
				lock, err := store.LoadLock(executor.GeneratorVersion)
				if err != nil {
					return fmt.Errorf("machine %s: %w", machineID, err)
				}
				plan, err := planner.DiffWithCache(cmd.Context(), cfg.Resources, order, machineID, lock, cache)
				if err != nil {
					return fmt.Errorf("machine %s: %w", machineID, err)
				}
				plans[machineID] = &planFor{Machine: machineID, Plan: plan}
				planOrder = append(planOrder, machineID)
			}

			if asJSON {
				out := make([]*planFor, 0, len(planOrder))
				for _, id := range planOrder {
					out = append(out, plans[id])
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			printPlansHuman(cmd, planOrder, plans)
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Output the plan as JSON")
	return c
}

type planFor struct {
	Machine string      `json:"machine"`
	Plan    *model.Plan `json:"plan"`
}

func printPlansHuman(cmd *cobra.Command, order []string, plans map[string]*planFor) {
	out := cmd.OutOrStdout()
	decorated := false
	if f, ok := out.(*os.File); ok {
		decorated = isatty.IsTerminal(f.Fd())
	}

	for _, machineID := range order {
		plan := plans[machineID].Plan
		fmt.Fprintf(out, "machine %s:\n", machineID)
		if len(plan.Steps) == 0 {
			fmt.Fprintln(out, "  (no resources target this machine)")
			continue
		}
		for _, step := range plan.Steps {
			marker := string(step.Action)
			if decorated {
				marker = "[" + marker + "]"
			}
			fmt.Fprintf(out, "  %s %s\n", marker, step.ResourceID)
		}
	}
}
