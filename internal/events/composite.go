// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import "github.com/forjar-dev/forjar/internal/model"

// CompositeSink fans out each emitted event to multiple sinks.
type CompositeSink struct {
	sinks []Sink
}

// NewCompositeSink returns a Sink that forwards to every non-nil sink
// given. Degenerates to the single sink (or nil) when there's nothing to
// fan out.
func NewCompositeSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &CompositeSink{sinks: filtered}
	}
}

// Emit forwards ev to every sink in order.
func (c *CompositeSink) Emit(ev model.Event) {
	for _, s := range c.sinks {
		s.Emit(ev)
	}
}
