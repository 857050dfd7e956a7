// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"

	"github.com/AleutianAI/LogicGraph/services/diagram/events"
	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
)

// PortKind is the directional role of a port.
type PortKind int

const (
	// PortKindInput receives a connection.
	PortKindInput PortKind = iota

	// PortKindOutput originates a connection.
	PortKindOutput
)

// String returns "input" or "output".
func (k PortKind) String() string {
	switch k {
	case PortKindInput:
		return "input"
	case PortKindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// ParsePortKind converts "input" or "output" into a PortKind.
func ParsePortKind(s string) (PortKind, error) {
	switch s {
	case "input":
		return PortKindInput, nil
	case "output":
		return PortKindOutput, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidPort, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k PortKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PortKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePortKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Port is a typed connection point owned by exactly one Node.
//
// A Port is created and destroyed by its Node. Its offset is fixed at
// creation; its absolute position is the owning node's position plus the
// offset.
type Port struct {
	id     string
	name   string
	kind   PortKind
	nodeID string
	value  any
	offset geom.Point

	emitter *events.Emitter
}

// newPort builds a port. Only Node creates ports.
func newPort(data PortData, kind PortKind, nodeID string, offset geom.Point, emitter *events.Emitter) *Port {
	return &Port{
		id:      data.ID,
		name:    data.Name,
		kind:    kind,
		nodeID:  nodeID,
		value:   data.Value,
		offset:  offset,
		emitter: emitter,
	}
}

// ID returns the graph-wide unique port ID.
func (p *Port) ID() string { return p.id }

// Name returns the display name.
func (p *Port) Name() string { return p.name }

// Kind returns Input or Output.
func (p *Port) Kind() PortKind { return p.kind }

// NodeID returns the ID of the owning node.
func (p *Port) NodeID() string { return p.nodeID }

// Value returns the opaque payload, or nil.
func (p *Port) Value() any { return p.value }

// Offset returns the position relative to the owning node's position.
func (p *Port) Offset() geom.Point { return p.offset }

// CanConnect reports whether p and other have opposite kinds.
//
// This is symmetric; direction (output to input) is enforced when the edge
// is constructed.
func (p *Port) CanConnect(other *Port) bool {
	return other != nil && p.kind != other.kind
}

// SetValue replaces the payload and emits EventValueChanged.
//
// Values do not feed any geometry, so no cache is touched.
func (p *Port) SetValue(value any) {
	p.value = value
	p.emitter.Emit(EventValueChanged, ValueEvent{Port: p, Value: value})
}

// On subscribes to this port's events. See EventValueChanged.
func (p *Port) On(eventType events.Type, handler events.Handler) string {
	return p.emitter.On(eventType, handler)
}

// Off removes a subscription created by On.
func (p *Port) Off(id string) bool {
	return p.emitter.Off(id)
}

// ToData snapshots the port for serialization.
func (p *Port) ToData() PortData {
	offset := p.offset
	return PortData{
		ID:     p.id,
		Name:   p.name,
		Kind:   p.kind.String(),
		Value:  p.value,
		Offset: &offset,
	}
}
