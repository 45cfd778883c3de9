// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterConfig = `version: "1.0"
name: example
description: starter config, edit machines and resources below

machines:
  web1:
    hostname: web1.example.internal
    addr: 127.0.0.1
    user: root

resources:
  curl:
    type: package
    machine: web1
    provider: apt
    packages: ["curl"]
    state: present
`

// NewInitCmd scaffolds a starter config document at the given path (or
// ./forjar.yaml).
func NewInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init [config.yaml]",
		Short: "Write a starter config document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "forjar.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[OK] wrote starter config to %s\n", path)
			return nil
		},
	}
	return c
}
