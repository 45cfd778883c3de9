// SPDX-License-Identifier: AGPL-3.0-or-later

package statestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// atomicWriteFile writes data to a temporary file in target's directory,
// fsyncs it, renames it over target, then fsyncs the containing
// directory so the rename itself is durable. The temp file never remains
// after a successful write. A crash at any point leaves target as either
// its prior content or the new content, never a truncated mix (spec.md
// §4.8).
func atomicWriteFile(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsync temp %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp %s: %w", tmpPath, err)
	}

	sameDev, err := sameDevice(tmpPath, dir)
	if err != nil {
		return fmt.Errorf("stat for device check: %w", err)
	}
	if !sameDev {
		return fmt.Errorf("refusing cross-device rename from %s to %s", tmpPath, target)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, target, err)
	}

	if err := fsyncDir(dir); err != nil {
		return fmt.Errorf("fsync dir %s: %w", dir, err)
	}
	return nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
