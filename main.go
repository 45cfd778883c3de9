// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/forjar-dev/forjar/cmd"

func main() {
	cmd.Execute()
}
