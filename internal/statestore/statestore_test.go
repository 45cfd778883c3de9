// SPDX-License-Identifier: AGPL-3.0-or-later

package statestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forjar-dev/forjar/internal/model"
	"github.com/forjar-dev/forjar/internal/paths"
)

func withTempStateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	paths.SetStateDirOverride(dir)
	t.Cleanup(func() { paths.SetStateDirOverride("") })
	return dir
}

func TestLoadLockMissingReturnsEmpty(t *testing.T) {
	withTempStateDir(t)
	store, err := Open("web1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	lock, err := store.LoadLock("test")
	if err != nil {
		t.Fatalf("LoadLock: %v", err)
	}
	if len(lock.Resources) != 0 {
		t.Errorf("expected empty lock, got %v", lock.Resources)
	}
}

func TestWriteLockThenLoadRoundTrips(t *testing.T) {
	withTempStateDir(t)
	store, err := Open("web1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	lock := model.NewLock("web1", "test")
	lock.Resources["pkg"] = model.LockEntry{Kind: model.KindPackage, Status: model.StatusConverged, DesiredHash: "sha256:abc"}

	if err := store.WriteLock(lock); err != nil {
		t.Fatalf("WriteLock: %v", err)
	}

	// no leftover temp file
	entries, err := os.ReadDir(filepath.Dir(store.LockPath()))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}

	loaded, err := store.LoadLock("test")
	if err != nil {
		t.Fatalf("LoadLock: %v", err)
	}
	if loaded.Resources["pkg"].DesiredHash != "sha256:abc" {
		t.Errorf("DesiredHash = %q, want sha256:abc", loaded.Resources["pkg"].DesiredHash)
	}
}

func TestEventLogAppendsJSONLines(t *testing.T) {
	withTempStateDir(t)
	store, err := Open("web1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	log, err := store.OpenEventLog()
	if err != nil {
		t.Fatalf("OpenEventLog: %v", err)
	}
	log.Sink().Emit(model.Event{Tag: model.EventApplyStarted, Machine: "web1", RunID: "r1"})
	log.Sink().Emit(model.Event{Tag: model.EventApplyCompleted, Machine: "web1", RunID: "r1"})
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(store.EventLogPath())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	// reopening and appending must not truncate prior content
	log2, err := store.OpenEventLog()
	if err != nil {
		t.Fatalf("OpenEventLog: %v", err)
	}
	log2.Sink().Emit(model.Event{Tag: model.EventResourceFailed, Machine: "web1", RunID: "r1"})
	_ = log2.Close()

	b2, err := os.ReadFile(store.EventLogPath())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines2 := strings.Split(strings.TrimRight(string(b2), "\n"), "\n")
	if len(lines2) != 3 {
		t.Fatalf("got %d lines after reopen, want 3", len(lines2))
	}
}
