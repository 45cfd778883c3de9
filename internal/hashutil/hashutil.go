// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hashutil computes content-addressed digests for bytes, files, and
// directory trees (spec.md §4.1, "Content-addressed hashing").
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Algo is the hash algorithm identifier embedded in a Digest's string form.
const Algo = "sha256"

// Digest is a content-addressed hash, serialized as "<algo>:<hex>".
type Digest string

// String returns the digest's canonical "<algo>:<hex>" form.
func (d Digest) String() string { return string(d) }

func newDigest(sum []byte) Digest {
	return Digest(fmt.Sprintf("%s:%s", Algo, hex.EncodeToString(sum)))
}

// Bytes hashes b directly.
func Bytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return newDigest(sum[:])
}

// File hashes the content of the file at path.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash file %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file %s: %w", path, err)
	}
	return newDigest(h.Sum(nil)), nil
}

// Dir computes a digest over an entire directory tree that is insensitive
// to filesystem iteration and creation order: every regular file and
// symlink is visited in a sort by relative, slash-separated path, and its
// contribution to the running hash is
//
//	relative-path-bytes || 0x00 || content-digest-bytes
//
// folded in that sorted order. Empty directories do not themselves
// contribute entries (there is no content to address), so two directory
// trees holding the same files produce the same digest regardless of how
// many empty subdirectories either one also happens to contain.
func Dir(root string) (Digest, error) {
	type entry struct {
		relPath string
		digest  Digest
	}
	var entries []entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		var digest Digest
		if d.Type()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			digest = Bytes([]byte(target))
		} else {
			digest, err = File(path)
			if err != nil {
				return err
			}
		}
		entries = append(entries, entry{relPath: rel, digest: digest})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash dir %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.relPath))
		h.Write([]byte{0x00})
		h.Write([]byte(e.digest))
	}
	return newDigest(h.Sum(nil)), nil
}

// Fields folds a sequence of canonical field values into a single digest,
// separating each with a NUL byte, as used by the planner to compute a
// resource's desired-state hash (spec.md §4.5, "Canonical hashing").
func Fields(fields ...string) Digest {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0x00})
		}
		h.Write([]byte(f))
	}
	return newDigest(h.Sum(nil))
}
