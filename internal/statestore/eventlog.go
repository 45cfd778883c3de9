// SPDX-License-Identifier: AGPL-3.0-or-later

package statestore

import (
	"fmt"
	"os"

	"github.com/forjar-dev/forjar/internal/events"
)

// EventLog is an append-only JSONL sink backed by the machine's
// events.jsonl file, opened once in append mode and reused for the
// duration of a run (spec.md §4.8: "no truncation or reordering").
type EventLog struct {
	f    *os.File
	sink *events.Writer
}

// OpenEventLog opens (creating if absent) the machine's event log in
// append mode.
func (s *Store) OpenEventLog() (*EventLog, error) {
	f, err := os.OpenFile(s.EventLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, &StateWriteError{Op: "open_event_log", Err: fmt.Errorf("open %s: %w", s.EventLogPath(), err)}
	}
	return &EventLog{f: f, sink: events.NewWriter(f)}, nil
}

// Sink exposes the underlying events.Sink for the executor to emit to.
func (l *EventLog) Sink() events.Sink { return l.sink }

// Close releases the underlying file handle.
func (l *EventLog) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}
