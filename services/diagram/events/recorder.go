// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

// Recorder captures events for assertions in tests.
//
// Attach it with Emitter.OnAny(recorder.Handle).
type Recorder struct {
	Events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{Events: make([]Event, 0)}
}

// Handle records an event. It has the Handler signature.
func (r *Recorder) Handle(event Event) {
	r.Events = append(r.Events, event)
}

// Types returns the recorded event types in delivery order.
func (r *Recorder) Types() []Type {
	types := make([]Type, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type
	}
	return types
}

// ByType returns recorded events of a specific type.
func (r *Recorder) ByType(eventType Type) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of recorded events.
func (r *Recorder) Count() int {
	return len(r.Events)
}

// Clear removes all recorded events.
func (r *Recorder) Clear() {
	r.Events = r.Events[:0]
}
