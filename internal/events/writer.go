// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import "bytes"

// LineBuffer accumulates written bytes and invokes onLine once per
// complete line, after passing it through an optional redactor. Used by
// the executor to surface a transport's captured stderr as individual
// event-log lines without ever holding an unbounded buffer for the whole
// run (spec.md §4.9: "Stderr from transport is captured in the event
// record, not echoed verbatim unless verbose mode is set").
type LineBuffer struct {
	onLine   func(line string)
	redactor func(string) string
	buf      bytes.Buffer
}

// NewLineBuffer returns a LineBuffer that calls onLine for each complete
// line written to it, after redactor (if non-nil).
func NewLineBuffer(onLine func(line string), redactor func(string) string) *LineBuffer {
	return &LineBuffer{onLine: onLine, redactor: redactor}
}

func (b *LineBuffer) Write(p []byte) (int, error) {
	start := 0
	for i, c := range p {
		if c == '\n' {
			b.buf.Write(p[start:i])
			b.flush()
			start = i + 1
		}
	}
	if start < len(p) {
		b.buf.Write(p[start:])
	}
	return len(p), nil
}

// Flush emits any partial final line that never reached a trailing
// newline.
func (b *LineBuffer) Flush() {
	if b.buf.Len() > 0 {
		b.flush()
	}
}

func (b *LineBuffer) flush() {
	line := b.buf.String()
	b.buf.Reset()
	if b.redactor != nil {
		line = b.redactor(line)
	}
	if b.onLine != nil {
		b.onLine(line)
	}
}
