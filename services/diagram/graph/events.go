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

import "github.com/AleutianAI/LogicGraph/services/diagram/events"

// Entity-local event types. These are emitted by a Node, Port or Edge on its
// own emitter.
const (
	// EventMoving is emitted by a Node before its position changes.
	// Payload: MoveEvent carrying the new coordinates. Node.Position still
	// returns the old position while handlers run.
	EventMoving events.Type = "moving"

	// EventMoved is emitted by a Node after its position changed.
	// Payload: MoveEvent.
	EventMoved events.Type = "moved"

	// EventResized is emitted by a Node after its size changed.
	// Payload: ResizeEvent.
	EventResized events.Type = "resized"

	// EventPortValue is emitted by a Node when one of its ports changed value.
	// Payload: ValueEvent.
	EventPortValue events.Type = "port:value"

	// EventValueChanged is emitted by a Port after SetValue.
	// Payload: ValueEvent.
	EventValueChanged events.Type = "value:changed"

	// EventConnected is emitted by an Edge from inside its construction.
	// Payload: ConnectEvent.
	EventConnected events.Type = "connected"

	// EventDisconnected is emitted by Edge.Disconnect.
	// Payload: RemovedEvent with the edge ID.
	EventDisconnected events.Type = "disconnected"
)

// Event types shared by Node and Graph. A Node emits them when its port set
// changes; the Graph re-emits them unchanged.
const (
	// EventPortAdded payload: PortEvent.
	EventPortAdded events.Type = "port:added"

	// EventPortRemoved payload: RemovedEvent with the port ID and owning node ID.
	EventPortRemoved events.Type = "port:removed"
)

// Graph-level event types. External collaborators (renderers, history,
// application shells) subscribe to these through Graph.On.
const (
	// EventNodeAdded payload: NodeEvent.
	EventNodeAdded events.Type = "node:added"

	// EventNodeRemoved payload: RemovedEvent with the node ID.
	EventNodeRemoved events.Type = "node:removed"

	// EventEdgeAdded payload: EdgeEvent.
	EventEdgeAdded events.Type = "edge:added"

	// EventEdgeRemoved payload: RemovedEvent with the edge ID.
	EventEdgeRemoved events.Type = "edge:removed"

	// EventNodeMoving payload: MoveEvent. The node index is not updated yet.
	EventNodeMoving events.Type = "node:moving"

	// EventNodeMoved payload: MoveEvent. The node and its edges are
	// re-indexed before this fires.
	EventNodeMoved events.Type = "node:moved"

	// EventNodeResized payload: ResizeEvent.
	EventNodeResized events.Type = "node:resized"

	// EventPortConnected payload: EdgeEvent.
	EventPortConnected events.Type = "port:connected"

	// EventPortDisconnected payload: RemovedEvent with the edge ID.
	EventPortDisconnected events.Type = "port:disconnected"

	// EventPortValueChanged payload: ValueEvent.
	EventPortValueChanged events.Type = "port:value:changed"
)

// NodeEvent carries a node.
type NodeEvent struct {
	Node *Node
}

// EdgeEvent carries an edge.
type EdgeEvent struct {
	Edge *Edge
}

// PortEvent carries a port.
type PortEvent struct {
	Port *Port
}

// RemovedEvent carries the ID of a removed entity. OwnerID is the owning
// node for ports and empty otherwise.
type RemovedEvent struct {
	ID      string
	OwnerID string
}

// MoveEvent carries the target coordinates of a position change.
type MoveEvent struct {
	Node *Node
	X    float64
	Y    float64
}

// ResizeEvent carries the new size of a node.
type ResizeEvent struct {
	Node   *Node
	Width  float64
	Height float64
}

// ValueEvent carries a port's new value.
type ValueEvent struct {
	Port  *Port
	Value any
}

// ConnectEvent carries the two endpoints of a newly constructed edge.
type ConnectEvent struct {
	Edge   *Edge
	Source *Port
	Target *Port
}
