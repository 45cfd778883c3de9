// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events provides the append-only JSONL sink the executor emits
// model.Event records to, plus line redaction for transport output
// (spec.md §4.9, §6.3).
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/forjar-dev/forjar/internal/model"
)

// Sink consumes emitted events.
type Sink interface {
	Emit(ev model.Event)
}

// Writer is a Sink backed by an io.Writer, appending each event as a
// single JSON line (spec.md §4.8: "a single write of record-bytes ||
// '\n'", no truncation or reordering).
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter returns a Sink that writes each event to out as one JSON
// line.
func NewWriter(out io.Writer) *Writer {
	if out == nil {
		return nil
	}
	return &Writer{out: out}
}

// Emit marshals ev and writes it as a single line.
func (w *Writer) Emit(ev model.Event) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintf(w.out, "{\"error\":%q}\n", err.Error())
		return
	}
	payload = append(payload, '\n')
	_, _ = w.out.Write(payload)
}
