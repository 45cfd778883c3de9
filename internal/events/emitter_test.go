// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/forjar-dev/forjar/internal/model"
)

func TestWriterEmitsOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Emit(model.Event{Timestamp: time.Unix(0, 0).UTC(), Tag: model.EventApplyStarted, Machine: "web1", RunID: "r1"})
	w.Emit(model.Event{Timestamp: time.Unix(1, 0).UTC(), Tag: model.EventApplyCompleted, Machine: "web1", RunID: "r1"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"apply_started"`) {
		t.Errorf("line 0 = %q, want apply_started", lines[0])
	}
	if !strings.Contains(lines[1], `"apply_completed"`) {
		t.Errorf("line 1 = %q, want apply_completed", lines[1])
	}
}

func TestCompositeSinkFansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	sink := NewCompositeSink(NewWriter(&buf1), NewWriter(&buf2))

	sink.Emit(model.Event{Tag: model.EventResourceStarted, Machine: "web1"})

	if buf1.Len() == 0 || buf2.Len() == 0 {
		t.Fatal("expected both sinks to receive the event")
	}
}

func TestLineBufferEmitsCompleteLinesOnly(t *testing.T) {
	var lines []string
	lb := NewLineBuffer(func(line string) { lines = append(lines, line) }, nil)

	lb.Write([]byte("first\nsecond"))
	if len(lines) != 1 || lines[0] != "first" {
		t.Fatalf("lines = %v, want [first]", lines)
	}

	lb.Flush()
	if len(lines) != 2 || lines[1] != "second" {
		t.Fatalf("lines = %v, want [first second]", lines)
	}
}

func TestLineBufferRedacts(t *testing.T) {
	var lines []string
	lb := NewLineBuffer(func(line string) { lines = append(lines, line) }, NewLineRedactor([]string{"hunter2"}))

	lb.Write([]byte("password is hunter2\n"))
	if lines[0] != "password is [secret]" {
		t.Errorf("lines[0] = %q, want redacted", lines[0])
	}
}
