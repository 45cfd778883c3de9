// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import "strings"

const secretToken = "[secret]"

// NewLineRedactor returns a function that replaces every occurrence of a
// secret value with secretToken in a line of text, or nil if secretValues
// has no non-empty entries (the common case: a config with no recipe input
// declared secret). A nil redactor is a valid LineBuffer argument and costs
// nothing per line.
func NewLineRedactor(secretValues []string) func(string) string {
	if len(secretValues) == 0 {
		return nil
	}
	filtered := make([]string, 0, len(secretValues))
	for _, val := range secretValues {
		if val != "" {
			filtered = append(filtered, val)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return func(line string) string {
		for _, secret := range filtered {
			line = strings.ReplaceAll(line, secret, secretToken)
		}
		return line
	}
}
