// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package statestore

import "syscall"

// sameDevice reports whether a and b reside on the same filesystem,
// letting atomicWriteFile refuse a rename that would otherwise silently
// fall back to a non-atomic copy-and-delete (spec.md §9, "Atomicity
// depends on POSIX rename semantics on the same filesystem").
func sameDevice(a, b string) (bool, error) {
	var sa, sb syscall.Stat_t
	if err := syscall.Stat(a, &sa); err != nil {
		return false, err
	}
	if err := syscall.Stat(b, &sb); err != nil {
		return false, err
	}
	return sa.Dev == sb.Dev, nil
}
