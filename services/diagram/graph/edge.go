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
	"log/slog"

	"github.com/AleutianAI/LogicGraph/services/diagram/cache"
	"github.com/AleutianAI/LogicGraph/services/diagram/events"
	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
)

// Cache keys used by Edge.
const (
	edgeKeyBounds         = "bounds"
	edgeKeySourcePosition = "sourcePosition"
	edgeKeyTargetPosition = "targetPosition"
)

// PortLookup resolves port IDs. Graph implements it; PortMap is the
// standalone form used while loading a document.
type PortLookup interface {
	GetPort(id string) (*Port, bool)
}

// NodeLookup resolves node IDs. Graph implements it.
type NodeLookup interface {
	GetNode(id string) (*Node, bool)
}

// PortMap is a PortLookup backed by a map.
type PortMap map[string]*Port

// GetPort implements PortLookup.
func (m PortMap) GetPort(id string) (*Port, bool) {
	p, ok := m[id]
	return p, ok
}

// AddNodePorts records every port of n.
func (m PortMap) AddNodePorts(n *Node) {
	for _, p := range n.Inputs() {
		m[p.id] = p
	}
	for _, p := range n.Outputs() {
		m[p.id] = p
	}
}

// EdgeID returns the deterministic ID used for an edge between two ports.
func EdgeID(sourcePortID, targetPortID string) string {
	return "edge-" + sourcePortID + "-" + targetPortID
}

// Edge is a directed link from an output port to an input port.
//
// Description:
//
//	An Edge never owns its endpoints. It records the endpoint port and node
//	IDs and resolves the live entities through the graph's node lookup, so
//	there are no ownership cycles between edges, nodes and ports.
//
//	Endpoint positions and bounds are memoized. The edge does not observe
//	its nodes: whoever moves an endpoint node must call invalidateGeometry.
//	Graph does this on every node move and resize.
//
// Thread Safety: NOT safe for concurrent use.
type Edge struct {
	id           string
	sourcePortID string
	targetPortID string
	sourceNodeID string
	targetNodeID string

	nodes   NodeLookup
	cache   *cache.Cache
	emitter *events.Emitter
}

// newEdge resolves and validates both endpoints and constructs the edge.
//
// Description:
//
//	wire is called with the new edge after validation succeeds and before
//	EventConnected fires, so the caller can attach listeners that observe
//	the connection. No Edge is returned on failure.
//
// Errors:
//
//	ErrPortNotFound - Either port ID is absent from ports, or the resolved
//	                  node does not own that port
//	ErrNodeNotFound - Either port's owning node is absent from nodes
//	ErrIncompatiblePorts - Same kinds, or the source port is an input
func newEdge(id, sourcePortID, targetPortID string, ports PortLookup, nodes NodeLookup, logger *slog.Logger, wire func(*Edge)) (*Edge, error) {
	source, ok := ports.GetPort(sourcePortID)
	if !ok {
		return nil, fmt.Errorf("%w: source %s", ErrPortNotFound, sourcePortID)
	}
	target, ok := ports.GetPort(targetPortID)
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrPortNotFound, targetPortID)
	}

	sourceNode, ok := nodes.GetNode(source.nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s (owner of port %s)", ErrNodeNotFound, source.nodeID, sourcePortID)
	}
	targetNode, ok := nodes.GetNode(target.nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s (owner of port %s)", ErrNodeNotFound, target.nodeID, targetPortID)
	}
	if owned, ok := sourceNode.Port(sourcePortID); !ok || owned != source {
		return nil, fmt.Errorf("%w: node %s does not own port %s", ErrPortNotFound, sourceNode.id, sourcePortID)
	}
	if owned, ok := targetNode.Port(targetPortID); !ok || owned != target {
		return nil, fmt.Errorf("%w: node %s does not own port %s", ErrPortNotFound, targetNode.id, targetPortID)
	}

	if source.kind == target.kind || source.kind == PortKindInput {
		return nil, fmt.Errorf("%w: %s (%s) -> %s (%s)",
			ErrIncompatiblePorts, sourcePortID, source.kind, targetPortID, target.kind)
	}

	if logger == nil {
		logger = slog.Default()
	}
	e := &Edge{
		id:           id,
		sourcePortID: sourcePortID,
		targetPortID: targetPortID,
		sourceNodeID: sourceNode.id,
		targetNodeID: targetNode.id,
		nodes:        nodes,
		cache:        cache.New("edge"),
		emitter:      events.NewEmitter(events.WithLogger(logger)),
	}
	if wire != nil {
		wire(e)
	}

	e.emitter.Emit(EventConnected, ConnectEvent{Edge: e, Source: source, Target: target})
	return e, nil
}

// ID returns the edge ID.
func (e *Edge) ID() string { return e.id }

// SourcePortID returns the ID of the output endpoint.
func (e *Edge) SourcePortID() string { return e.sourcePortID }

// TargetPortID returns the ID of the input endpoint.
func (e *Edge) TargetPortID() string { return e.targetPortID }

// SourceNodeID returns the ID of the node owning the source port.
func (e *Edge) SourceNodeID() string { return e.sourceNodeID }

// TargetNodeID returns the ID of the node owning the target port.
func (e *Edge) TargetNodeID() string { return e.targetNodeID }

// SourceNode resolves the source node, or nil if it no longer exists.
func (e *Edge) SourceNode() *Node {
	n, _ := e.nodes.GetNode(e.sourceNodeID)
	return n
}

// TargetNode resolves the target node, or nil if it no longer exists.
func (e *Edge) TargetNode() *Node {
	n, _ := e.nodes.GetNode(e.targetNodeID)
	return n
}

// SourcePort resolves the source port, or nil if it no longer exists.
func (e *Edge) SourcePort() *Port {
	return resolvePort(e.SourceNode(), e.sourcePortID)
}

// TargetPort resolves the target port, or nil if it no longer exists.
func (e *Edge) TargetPort() *Port {
	return resolvePort(e.TargetNode(), e.targetPortID)
}

func resolvePort(n *Node, portID string) *Port {
	if n == nil {
		return nil
	}
	p, _ := n.Port(portID)
	return p
}

// References reports whether either endpoint belongs to nodeID.
func (e *Edge) References(nodeID string) bool {
	return e.sourceNodeID == nodeID || e.targetNodeID == nodeID
}

// Touches reports whether either endpoint is portID.
func (e *Edge) Touches(portID string) bool {
	return e.sourcePortID == portID || e.targetPortID == portID
}

// SourcePosition returns the absolute position of the source port. Memoized.
func (e *Edge) SourcePosition() geom.Point {
	return cache.Memo(e.cache, edgeKeySourcePosition, func() geom.Point {
		return endpointPosition(e.SourceNode(), e.sourcePortID)
	})
}

// TargetPosition returns the absolute position of the target port. Memoized.
func (e *Edge) TargetPosition() geom.Point {
	return cache.Memo(e.cache, edgeKeyTargetPosition, func() geom.Point {
		return endpointPosition(e.TargetNode(), e.targetPortID)
	})
}

func endpointPosition(n *Node, portID string) geom.Point {
	if n == nil {
		return geom.Point{}
	}
	p, _ := n.PortPosition(portID)
	return p
}

// Bounds returns the bounding rectangle of both endpoint positions. Memoized.
func (e *Edge) Bounds() geom.Rect {
	return cache.Memo(e.cache, edgeKeyBounds, func() geom.Rect {
		return geom.BoundsOf(e.SourcePosition(), e.TargetPosition())
	})
}

// invalidateGeometry clears every memoized position and bounds entry. It
// must be called whenever either endpoint node moves or resizes.
func (e *Edge) invalidateGeometry() {
	e.cache.Delete(edgeKeyBounds, edgeKeySourcePosition, edgeKeyTargetPosition)
}

// Disconnect emits EventDisconnected. It changes no state; the owning
// graph removes the edge from its collections.
func (e *Edge) Disconnect() {
	e.emitter.Emit(EventDisconnected, RemovedEvent{ID: e.id})
}

// On subscribes to this edge's events.
func (e *Edge) On(eventType events.Type, handler events.Handler) string {
	return e.emitter.On(eventType, handler)
}

// Off removes a subscription created by On.
func (e *Edge) Off(id string) bool {
	return e.emitter.Off(id)
}

// CacheStats returns the hit and miss counts of the edge's geometry cache.
func (e *Edge) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// ToData snapshots the edge for serialization.
func (e *Edge) ToData() EdgeData {
	return EdgeData{
		ID:           e.id,
		SourcePortID: e.sourcePortID,
		TargetPortID: e.targetPortID,
	}
}
