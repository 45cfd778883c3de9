// SPDX-License-Identifier: AGPL-3.0-or-later

// Package codegen renders idempotent bash scripts for primitive
// resources (spec.md §4.6).
package codegen

import (
	"fmt"
	"strings"

	"github.com/forjar-dev/forjar/internal/model"
	shellquote "github.com/kballard/go-shellquote"
)

const heredocSentinel = "FORJAR_EOF"

// prelude is cosmetic when the script is piped to an interpreter's stdin
// (the shebang line is never executed), but names the same interpreter the
// transport layer actually invokes, since "set -o pipefail" is a bashism
// dash's /bin/sh rejects.
const prelude = "#!/bin/bash\nset -euo pipefail\n"

// Render produces the shell script that converges r to its declared
// desired state, dispatching on r.Type.
func Render(r model.Resource) (string, error) {
	switch r.Type {
	case model.KindPackage:
		return renderPackage(r)
	case model.KindFile:
		return renderFile(r)
	case model.KindService:
		return renderService(r)
	case model.KindMount:
		return renderMount(r)
	default:
		return "", fmt.Errorf("codegen: unrenderable kind %q", r.Type)
	}
}

func q(s string) string {
	return shellquote.Join(s)
}

func renderPackage(r model.Resource) (string, error) {
	var b strings.Builder
	b.WriteString(prelude)

	packages := make([]string, len(r.Packages))
	for i, p := range r.Packages {
		packages[i] = q(p)
	}
	pkgList := strings.Join(packages, " ")

	switch r.Provider {
	case "apt":
		switch r.State {
		case "absent":
			fmt.Fprintf(&b, "MISSING=0\nfor p in %s; do\n  if dpkg -s \"$p\" >/dev/null 2>&1; then MISSING=1; fi\ndone\n", pkgList)
			fmt.Fprintf(&b, "if [ \"$MISSING\" = 1 ]; then DEBIAN_FRONTEND=noninteractive apt-get remove -y %s; fi\n", pkgList)
			fmt.Fprintf(&b, "for p in %s; do\n  if dpkg -s \"$p\" >/dev/null 2>&1; then echo \"postcondition failed: $p still installed\" >&2; exit 1; fi\ndone\n", pkgList)
		default:
			fmt.Fprintf(&b, "NEEDED=0\nfor p in %s; do\n  if ! dpkg -s \"$p\" >/dev/null 2>&1; then NEEDED=1; fi\ndone\n", pkgList)
			fmt.Fprintf(&b, "if [ \"$NEEDED\" = 1 ]; then DEBIAN_FRONTEND=noninteractive apt-get install -y %s; fi\n", pkgList)
			fmt.Fprintf(&b, "for p in %s; do\n  if ! dpkg -s \"$p\" >/dev/null 2>&1; then echo \"postcondition failed: $p not installed\" >&2; exit 1; fi\ndone\n", pkgList)
		}
	case "cargo":
		switch r.State {
		case "absent":
			fmt.Fprintf(&b, "for p in %s; do\n  if cargo install --list | grep -q \"^$p \"; then cargo uninstall \"$p\"; fi\ndone\n", pkgList)
			fmt.Fprintf(&b, "for p in %s; do\n  if cargo install --list | grep -q \"^$p \"; then echo \"postcondition failed: $p still installed\" >&2; exit 1; fi\ndone\n", pkgList)
		default:
			fmt.Fprintf(&b, "for p in %s; do\n  if ! cargo install --list | grep -q \"^$p \"; then cargo install \"$p\"; fi\ndone\n", pkgList)
			fmt.Fprintf(&b, "for p in %s; do\n  if ! cargo install --list | grep -q \"^$p \"; then echo \"postcondition failed: $p not installed\" >&2; exit 1; fi\ndone\n", pkgList)
		}
	case "pip":
		switch r.State {
		case "absent":
			fmt.Fprintf(&b, "for p in %s; do\n  if pip show \"$p\" >/dev/null 2>&1; then pip uninstall -y \"$p\"; fi\ndone\n", pkgList)
			fmt.Fprintf(&b, "for p in %s; do\n  if pip show \"$p\" >/dev/null 2>&1; then echo \"postcondition failed: $p still installed\" >&2; exit 1; fi\ndone\n", pkgList)
		default:
			fmt.Fprintf(&b, "for p in %s; do\n  if ! pip show \"$p\" >/dev/null 2>&1; then pip install \"$p\"; fi\ndone\n", pkgList)
			fmt.Fprintf(&b, "for p in %s; do\n  if ! pip show \"$p\" >/dev/null 2>&1; then echo \"postcondition failed: $p not installed\" >&2; exit 1; fi\ndone\n", pkgList)
		}
	default:
		return "", fmt.Errorf("codegen: unknown package provider %q", r.Provider)
	}
	return b.String(), nil
}

func renderFile(r model.Resource) (string, error) {
	var b strings.Builder
	b.WriteString(prelude)
	path := q(r.Path)

	switch r.State {
	case "directory":
		fmt.Fprintf(&b, "mkdir -p %s\n", path)
		writeOwnership(&b, r, path)
		fmt.Fprintf(&b, "[ -d %s ] || { echo \"postcondition failed: %s not a directory\" >&2; exit 1; }\n", path, r.Path)

	case "symlink":
		target := q(r.Target)
		tmp := q(r.Path + ".forjar-tmp")
		fmt.Fprintf(&b, "mkdir -p \"$(dirname %s)\"\n", path)
		fmt.Fprintf(&b, "ln -sfn %s %s\n", target, tmp)
		fmt.Fprintf(&b, "mv -T %s %s\n", tmp, path)
		fmt.Fprintf(&b, "[ \"$(readlink %s)\" = %s ] || { echo \"postcondition failed: %s not linked to %s\" >&2; exit 1; }\n", path, target, r.Path, r.Target)

	case "absent":
		fmt.Fprintf(&b, "rm -rf %s\n", path)
		fmt.Fprintf(&b, "[ -e %s ] && { echo \"postcondition failed: %s still present\" >&2; exit 1; } || true\n", path, r.Path)

	default: // "file" or empty
		tmp := q(r.Path + ".forjar-tmp")
		fmt.Fprintf(&b, "mkdir -p \"$(dirname %s)\"\n", path)
		// A heredoc body always ends in a newline, so content that already
		// ends in one is written as-is and content that does not gets one
		// appended.
		body := r.Content
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		fmt.Fprintf(&b, "cat > %s <<'%s'\n%s%s\n", tmp, heredocSentinel, body, heredocSentinel)
		writeOwnership(&b, r, tmp)
		fmt.Fprintf(&b, "mv -T %s %s\n", tmp, path)
		fmt.Fprintf(&b, "[ -f %s ] || { echo \"postcondition failed: %s not a regular file\" >&2; exit 1; }\n", path, r.Path)
	}
	return b.String(), nil
}

func writeOwnership(b *strings.Builder, r model.Resource, pathExpr string) {
	if r.Owner != "" || r.Group != "" {
		owner := r.Owner
		if r.Group != "" {
			owner = owner + ":" + r.Group
		}
		fmt.Fprintf(b, "chown %s %s\n", q(owner), pathExpr)
	}
	if r.Mode != "" {
		fmt.Fprintf(b, "chmod %s %s\n", q(r.Mode), pathExpr)
	}
}

func renderService(r model.Resource) (string, error) {
	var b strings.Builder
	b.WriteString(prelude)
	name := q(r.Name)

	switch r.State {
	case "running":
		fmt.Fprintf(&b, "systemctl is-active --quiet %s || systemctl start %s\n", name, name)
		if r.Enabled != nil && *r.Enabled {
			fmt.Fprintf(&b, "systemctl is-enabled --quiet %s || systemctl enable %s\n", name, name)
		}
		fmt.Fprintf(&b, "systemctl is-active --quiet %s || { echo \"postcondition failed: %s not active\" >&2; exit 1; }\n", name, r.Name)
	case "stopped":
		fmt.Fprintf(&b, "! systemctl is-active --quiet %s || systemctl stop %s\n", name, name)
		if r.Enabled != nil && !*r.Enabled {
			fmt.Fprintf(&b, "! systemctl is-enabled --quiet %s || systemctl disable %s\n", name, name)
		}
		fmt.Fprintf(&b, "systemctl is-active --quiet %s && { echo \"postcondition failed: %s still active\" >&2; exit 1; } || true\n", name, r.Name)
	case "enabled":
		fmt.Fprintf(&b, "systemctl is-enabled --quiet %s || systemctl enable %s\n", name, name)
		fmt.Fprintf(&b, "systemctl is-enabled --quiet %s || { echo \"postcondition failed: %s not enabled\" >&2; exit 1; }\n", name, r.Name)
	case "disabled":
		fmt.Fprintf(&b, "! systemctl is-enabled --quiet %s || systemctl disable %s\n", name, name)
		fmt.Fprintf(&b, "systemctl is-enabled --quiet %s && { echo \"postcondition failed: %s still enabled\" >&2; exit 1; } || true\n", name, r.Name)
	default:
		return "", fmt.Errorf("codegen: unknown service state %q", r.State)
	}
	return b.String(), nil
}

func renderMount(r model.Resource) (string, error) {
	var b strings.Builder
	b.WriteString(prelude)
	path := q(r.Path)
	target := q(r.Target)

	switch r.State {
	case "mounted":
		fmt.Fprintf(&b, "mkdir -p %s\n", path)
		fmt.Fprintf(&b, "mountpoint -q %s || mount -t %s -o %s %s %s\n", path, q(r.FSType), q(r.Options), target, path)
		fmt.Fprintf(&b, "mountpoint -q %s || { echo \"postcondition failed: %s not mounted\" >&2; exit 1; }\n", path, r.Path)
	case "unmounted":
		fmt.Fprintf(&b, "! mountpoint -q %s || umount %s\n", path, path)
		fmt.Fprintf(&b, "mountpoint -q %s && { echo \"postcondition failed: %s still mounted\" >&2; exit 1; } || true\n", path, r.Path)
	case "absent":
		fmt.Fprintf(&b, "! mountpoint -q %s || umount %s\n", path, path)
		fmt.Fprintf(&b, "rm -rf %s\n", path)
		fmt.Fprintf(&b, "[ -e %s ] && { echo \"postcondition failed: %s still present\" >&2; exit 1; } || true\n", path, r.Path)
	default:
		return "", fmt.Errorf("codegen: unknown mount state %q", r.State)
	}
	return b.String(), nil
}
