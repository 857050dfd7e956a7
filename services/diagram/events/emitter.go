// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides the synchronous publish/subscribe primitive used by
// every stateful diagram entity.
//
// Delivery is synchronous and ordered: Emit calls each matching handler in
// the order it was registered and returns only after all of them have
// returned. A handler may itself emit; the nested emit runs to completion
// before the outer emit moves on to its next handler.
//
// Thread Safety:
//
//	Emitter is NOT safe for concurrent use. It belongs to exactly one owner
//	(a node, port, edge or graph) and is driven from that owner's goroutine.
package events

import (
	"log/slog"

	"github.com/google/uuid"
)

// Type identifies the kind of event.
type Type string

// Event is a single notification delivered to handlers.
type Event struct {
	// Type is the event kind.
	Type Type

	// Data is the event payload. Its concrete type is fixed per Type and is
	// documented by the package that declares the Type.
	Data any
}

// Handler processes events.
type Handler func(event Event)

// subscription is a registered handler.
type subscription struct {
	id      string
	handler Handler

	// eventType limits the subscription to one type. Empty matches all.
	eventType Type
}

// Emitter dispatches events to subscribers in registration order.
type Emitter struct {
	subs   []*subscription
	logger *slog.Logger
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithLogger sets the logger used to report recovered handler panics.
func WithLogger(logger *slog.Logger) EmitterOption {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLogger replaces the logger used to report recovered handler panics.
// A nil logger is ignored.
func (e *Emitter) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// On registers a handler for one event type.
//
// Inputs:
//
//	eventType - The type to listen for. Must not be empty.
//	handler - Function to call for each matching event.
//
// Outputs:
//
//	string - Subscription ID for Off.
func (e *Emitter) On(eventType Type, handler Handler) string {
	return e.subscribe(eventType, handler)
}

// OnAny registers a handler for every event type.
func (e *Emitter) OnAny(handler Handler) string {
	return e.subscribe("", handler)
}

func (e *Emitter) subscribe(eventType Type, handler Handler) string {
	sub := &subscription{
		id:        uuid.NewString(),
		handler:   handler,
		eventType: eventType,
	}
	e.subs = append(e.subs, sub)
	return sub.id
}

// Off removes a subscription.
//
// Inputs:
//
//	id - The subscription ID returned by On or OnAny.
//
// Outputs:
//
//	bool - True if the subscription was found and removed.
func (e *Emitter) Off(id string) bool {
	for i, sub := range e.subs {
		if sub.id == id {
			// Copy instead of shifting in place: an in-flight Emit holds the
			// old backing array.
			next := make([]*subscription, 0, len(e.subs)-1)
			next = append(next, e.subs[:i]...)
			next = append(next, e.subs[i+1:]...)
			e.subs = next
			return true
		}
	}
	return false
}

// Emit delivers an event to every matching subscriber.
//
// Description:
//
//	The subscriber list is captured when Emit starts, so handlers added or
//	removed during delivery take effect from the next Emit. A handler that
//	panics is recovered and logged; the remaining handlers still run.
//
// Inputs:
//
//	eventType - The type of event.
//	data - The typed payload for eventType.
func (e *Emitter) Emit(eventType Type, data any) {
	if len(e.subs) == 0 {
		return
	}
	event := Event{Type: eventType, Data: data}
	subs := e.subs
	for _, sub := range subs {
		if sub.eventType != "" && sub.eventType != eventType {
			continue
		}
		e.safeInvoke(sub.handler, event)
	}
}

// safeInvoke calls a handler with panic recovery.
func (e *Emitter) safeInvoke(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				"event_type", event.Type,
				"panic", r,
			)
		}
	}()
	handler(event)
}

// SubscriptionCount returns the number of active subscriptions.
func (e *Emitter) SubscriptionCount() int {
	return len(e.subs)
}

// Reset drops every subscription.
func (e *Emitter) Reset() {
	e.subs = nil
}
