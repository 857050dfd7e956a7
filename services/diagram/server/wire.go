// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/AleutianAI/LogicGraph/services/diagram/events"
	"github.com/AleutianAI/LogicGraph/services/diagram/graph"
)

// EventGraphReloaded is sent to clients after the whole document was
// replaced. It carries no IDs.
const EventGraphReloaded events.Type = "graph:reloaded"

// WireEvent is the JSON form of a graph event sent to websocket clients.
// Only the fields meaningful for Type are set.
type WireEvent struct {
	Type   string   `json:"type"`
	NodeID string   `json:"node_id,omitempty"`
	EdgeID string   `json:"edge_id,omitempty"`
	PortID string   `json:"port_id,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Value  any      `json:"value,omitempty"`
}

// toWire flattens a graph event. It must run inside the emit that produced
// the event, while the entities in the payload are still consistent.
func toWire(e events.Event) WireEvent {
	w := WireEvent{Type: string(e.Type)}

	switch data := e.Data.(type) {
	case graph.NodeEvent:
		w.NodeID = data.Node.ID()

	case graph.EdgeEvent:
		w.EdgeID = data.Edge.ID()

	case graph.PortEvent:
		w.PortID = data.Port.ID()
		w.NodeID = data.Port.NodeID()

	case graph.MoveEvent:
		w.NodeID = data.Node.ID()
		w.X, w.Y = &data.X, &data.Y

	case graph.ResizeEvent:
		w.NodeID = data.Node.ID()
		w.Width, w.Height = &data.Width, &data.Height

	case graph.ValueEvent:
		w.PortID = data.Port.ID()
		w.NodeID = data.Port.NodeID()
		w.Value = data.Value

	case graph.RemovedEvent:
		switch e.Type {
		case graph.EventNodeRemoved:
			w.NodeID = data.ID
		case graph.EventPortRemoved:
			w.PortID = data.ID
			w.NodeID = data.OwnerID
		default:
			w.EdgeID = data.ID
		}
	}
	return w
}
