// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph is the in-memory data core of a node/port/edge diagram.
//
// The package contains the entity model (Node, Port, Edge) and the Graph
// aggregate that owns every entity, keeps two spatial indexes (node bounds
// and edge bounds) in step with entity geometry, and re-broadcasts entity
// events as graph-level events for renderers, history and UI layers.
//
// # Ownership Model
//
// Graph is the only factory and the only owner:
//   - Nodes and edges live in id-keyed maps owned by the Graph
//   - Ports are owned by their Node
//   - Edges record endpoint IDs and resolve live entities through the Graph
//
// # Control Flow
//
// A mutation enters through a Graph, Node or Edge method. The entity updates
// its own state and clears the cache entries it invalidated, then emits a
// local event. The Graph's listener re-indexes the entity and re-emits a
// graph-level event.
//
// # Integrity
//
// Graph maintains, without transactions:
//   - Every edge's endpoint nodes and ports exist
//   - Every node and edge has exactly one index entry whose bounds equal the
//     entity's bounds at its last (re)indexing
//   - Edges are removed before the node or port they reference
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. Every mutator runs to
// completion, including all listener callbacks, before returning.
package graph

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/AleutianAI/LogicGraph/services/diagram/events"
	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
	"github.com/AleutianAI/LogicGraph/services/diagram/quadtree"
)

// PortPair names the endpoints of an edge to create with AddEdges.
type PortPair struct {
	Source *Port
	Target *Port
}

// Graph is the aggregate owning all nodes and edges of a diagram.
//
// Lifecycle:
//
//  1. Create with New(id, name)
//  2. Populate with CreateNode/AddEdge, or FromData
//  3. Mutate through Graph, Node and Edge methods; observe through On
//  4. Clear or FromData to start over
type Graph struct {
	id   string
	name string

	// nodes maps node ID to Node. nodeOrder keeps insertion order.
	nodes     map[string]*Node
	nodeOrder []string

	// edges maps edge ID to Edge. edgeOrder keeps insertion order.
	edges     map[string]*Edge
	edgeOrder []string

	// ports maps port ID to the ID of its owning node.
	ports map[string]string

	// incident maps node ID to the IDs of edges with an endpoint on it.
	incident map[string]map[string]struct{}

	// subs maps entity ID to the graph's subscription on that entity.
	nodeSubs map[string]string
	edgeSubs map[string]string

	nodeIndex *quadtree.QuadTree
	edgeIndex *quadtree.QuadTree

	options Options
	emitter *events.Emitter
	logger  *slog.Logger
}

// New creates an empty graph.
//
// Example:
//
//	g := graph.New("g1", "Main",
//	    graph.WithWorldBounds(geom.NewRect(0, 0, 4096, 4096)),
//	    graph.WithLogger(logger),
//	)
func New(id, name string, opts ...Option) *Graph {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	g := &Graph{
		id:       id,
		name:     name,
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		ports:    make(map[string]string),
		incident: make(map[string]map[string]struct{}),
		nodeSubs: make(map[string]string),
		edgeSubs: make(map[string]string),
		options:  options,
		logger:   options.Logger.With("graph_id", id),
	}
	g.nodeIndex = g.newIndex()
	g.edgeIndex = g.newIndex()
	g.emitter = events.NewEmitter(events.WithLogger(g.logger))
	return g
}

// setID renames the graph and rebinds its loggers to the new graph_id.
func (g *Graph) setID(id string) {
	if id == g.id {
		return
	}
	g.id = id
	g.logger = g.options.Logger.With("graph_id", id)
	g.emitter.SetLogger(g.logger)
}

func (g *Graph) newIndex() *quadtree.QuadTree {
	return quadtree.New(g.options.WorldBounds,
		quadtree.WithMaxDepth(g.options.IndexMaxDepth),
		quadtree.WithRootCapacity(g.options.IndexRootCapacity),
	)
}

// ID returns the graph ID.
func (g *Graph) ID() string { return g.id }

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// WorldBounds returns the extent of the spatial indexes.
func (g *Graph) WorldBounds() geom.Rect { return g.options.WorldBounds }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// On subscribes to graph-level events. See the Event* constants.
func (g *Graph) On(eventType events.Type, handler events.Handler) string {
	return g.emitter.On(eventType, handler)
}

// OnAny subscribes to every graph-level event.
func (g *Graph) OnAny(handler events.Handler) string {
	return g.emitter.OnAny(handler)
}

// Off removes a subscription created by On or OnAny.
func (g *Graph) Off(id string) bool {
	return g.emitter.Off(id)
}

// =============================================================================
// Nodes
// =============================================================================

// CreateNode builds a node from data, indexes it and emits EventNodeAdded.
//
// Errors:
//
//	ErrDuplicateNode - A node with the same ID exists
//	ErrInvalidNode, ErrInvalidSize, ErrInvalidPort - Data fails validation
//	ErrDuplicatePort - A port ID is already used in the graph
//	ErrOutOfBounds - The node's bounds lie outside the world
func (g *Graph) CreateNode(data NodeData) (*Node, error) {
	n, err := g.createNode(data)
	recordMutation("create_node", err == nil)
	return n, err
}

func (g *Graph) createNode(data NodeData) (*Node, error) {
	if _, exists := g.nodes[data.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, data.ID)
	}

	n, err := newNode(data, nodeConfig{
		defaultSize: g.options.DefaultNodeSize,
		portTaken:   g.portTaken,
		logger:      g.logger,
	})
	if err != nil {
		return nil, err
	}

	if !g.nodeIndex.Insert(n.id, n.Bounds()) {
		g.logger.Error("node outside world bounds",
			"node_id", n.id,
			"bounds", n.Bounds().String(),
			"world", g.options.WorldBounds.String(),
		)
		return nil, fmt.Errorf("%w: node %s at %s", ErrOutOfBounds, n.id, n.Bounds())
	}

	g.nodes[n.id] = n
	g.nodeOrder = append(g.nodeOrder, n.id)
	for _, p := range n.Inputs() {
		g.ports[p.id] = n.id
	}
	for _, p := range n.Outputs() {
		g.ports[p.id] = n.id
	}
	g.nodeSubs[n.id] = n.emitter.OnAny(func(e events.Event) {
		g.handleNodeEvent(n, e)
	})

	g.emitter.Emit(EventNodeAdded, NodeEvent{Node: n})
	return n, nil
}

// portTaken reports whether a port ID is used by any node in the graph.
func (g *Graph) portTaken(id string) bool {
	_, ok := g.ports[id]
	return ok
}

// handleNodeEvent keeps indexes in step with a node and re-emits its events.
func (g *Graph) handleNodeEvent(n *Node, e events.Event) {
	switch e.Type {
	case EventMoving:
		// The index is only updated on commit.
		g.emitter.Emit(EventNodeMoving, e.Data)

	case EventMoved:
		g.reindexNode(n)
		g.reindexIncidentEdges(n.id)
		g.emitter.Emit(EventNodeMoved, e.Data)

	case EventResized:
		g.reindexNode(n)
		g.reindexIncidentEdges(n.id)
		g.emitter.Emit(EventNodeResized, e.Data)

	case EventPortAdded:
		if pe, ok := e.Data.(PortEvent); ok {
			g.ports[pe.Port.id] = n.id
		}
		g.emitter.Emit(EventPortAdded, e.Data)

	case EventPortRemoved:
		if re, ok := e.Data.(RemovedEvent); ok {
			for _, edge := range g.EdgesOf(n.id) {
				if edge.Touches(re.ID) {
					g.RemoveEdge(edge.id)
				}
			}
			delete(g.ports, re.ID)
		}
		g.emitter.Emit(EventPortRemoved, e.Data)

	case EventPortValue:
		g.emitter.Emit(EventPortValueChanged, e.Data)
	}
}

// reindexNode replaces a node's index entry with its current bounds.
func (g *Graph) reindexNode(n *Node) {
	g.nodeIndex.Remove(n.id)
	if !g.nodeIndex.Insert(n.id, n.Bounds()) {
		g.logger.Error("node left world bounds; not indexed",
			"node_id", n.id,
			"bounds", n.Bounds().String(),
		)
	}
}

// reindexIncidentEdges refreshes geometry and index entries of every edge
// attached to nodeID.
func (g *Graph) reindexIncidentEdges(nodeID string) {
	for id := range g.incident[nodeID] {
		e := g.edges[id]
		e.invalidateGeometry()
		g.reindexEdge(e)
	}
}

func (g *Graph) reindexEdge(e *Edge) {
	g.edgeIndex.Remove(e.id)
	if !g.edgeIndex.Insert(e.id, e.Bounds()) {
		g.logger.Error("edge left world bounds; not indexed",
			"edge_id", e.id,
			"bounds", e.Bounds().String(),
		)
	}
}

// AddNodes creates nodes in order and returns the ones created.
//
// Description:
//
//	Each item is independent: a failing item is logged and omitted from the
//	result, and there is no rollback of items already created.
func (g *Graph) AddNodes(data []NodeData) []*Node {
	out := make([]*Node, 0, len(data))
	for _, d := range data {
		n, err := g.CreateNode(d)
		if err != nil {
			g.logger.Warn("skipping node", "node_id", d.ID, "error", err)
			continue
		}
		out = append(out, n)
	}
	return out
}

// GetNode returns the node with the given ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// GetNodes returns all nodes in insertion order.
func (g *Graph) GetNodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// GetPort returns the port with the given ID from whichever node owns it.
func (g *Graph) GetPort(id string) (*Port, bool) {
	nodeID, ok := g.ports[id]
	if !ok {
		return nil, false
	}
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil, false
	}
	return n.Port(id)
}

// RemoveNode deletes a node after deleting every edge attached to it.
//
// Description:
//
//	Evicts the node from the node index, removes each incident edge through
//	RemoveEdge, then deletes the node and emits EventNodeRemoved. Edges go
//	first so no observer can see an edge whose node is gone.
//
// Outputs:
//
//	bool - False if no node has this ID.
func (g *Graph) RemoveNode(id string) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}

	g.nodeIndex.Remove(id)
	for _, e := range g.EdgesOf(id) {
		g.RemoveEdge(e.id)
	}

	if sub, ok := g.nodeSubs[id]; ok {
		n.Off(sub)
		delete(g.nodeSubs, id)
	}
	for _, p := range n.Inputs() {
		delete(g.ports, p.id)
	}
	for _, p := range n.Outputs() {
		delete(g.ports, p.id)
	}
	delete(g.incident, id)
	delete(g.nodes, id)
	g.nodeOrder = removeID(g.nodeOrder, id)

	recordMutation("remove_node", true)
	g.emitter.Emit(EventNodeRemoved, RemovedEvent{ID: id})
	return true
}

// RemoveNodes removes nodes in order and returns the IDs actually removed.
func (g *Graph) RemoveNodes(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if g.RemoveNode(id) {
			out = append(out, id)
		}
	}
	return out
}

// NodeAt returns the most recently added node whose bounds contain p.
func (g *Graph) NodeAt(p geom.Point) (*Node, bool) {
	var (
		best    *Node
		bestIdx = -1
	)
	for _, item := range g.nodeIndex.Query(geom.Rect{X: p.X, Y: p.Y}) {
		idx := slices.Index(g.nodeOrder, item.ID)
		if idx > bestIdx {
			best, bestIdx = g.nodes[item.ID], idx
		}
	}
	return best, best != nil
}

// =============================================================================
// Edges
// =============================================================================

// CreateEdge constructs an edge from data, resolving ports through ports
// and nodes through the graph.
//
// Description:
//
//	An empty data.ID is replaced by EdgeID(source, target). The graph's
//	listeners are attached before the edge announces its connection, so
//	EventPortConnected fires before EventEdgeAdded.
//
// Errors:
//
//	ErrDuplicateEdge - An edge with the same ID exists
//	ErrPortNotFound, ErrNodeNotFound, ErrIncompatiblePorts - See newEdge
//	ErrNodeNotFound - A listener removed an endpoint during EventPortConnected
//	ErrOutOfBounds - The edge's bounds lie outside the world
func (g *Graph) CreateEdge(data EdgeData, ports PortLookup) (*Edge, error) {
	e, err := g.createEdge(data, ports)
	recordMutation("create_edge", err == nil)
	return e, err
}

func (g *Graph) createEdge(data EdgeData, ports PortLookup) (*Edge, error) {
	id := data.ID
	if id == "" {
		id = EdgeID(data.SourcePortID, data.TargetPortID)
	}
	if _, exists := g.edges[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEdge, id)
	}

	e, err := newEdge(id, data.SourcePortID, data.TargetPortID, ports, g, g.logger, g.wireEdge)
	if err != nil {
		return nil, err
	}

	// Listeners of EventPortConnected may have removed an endpoint before
	// the edge was stored, out of reach of the removal cascade.
	if e.SourcePort() == nil || e.TargetPort() == nil {
		g.logger.Warn("edge endpoint removed during connection",
			"edge_id", e.id,
			"source", e.sourcePortID,
			"target", e.targetPortID,
		)
		e.Disconnect()
		g.unwireEdge(e)
		return nil, fmt.Errorf("%w: endpoint of edge %s removed during connection", ErrNodeNotFound, e.id)
	}

	if !g.edgeIndex.Insert(e.id, e.Bounds()) {
		g.logger.Error("edge outside world bounds",
			"edge_id", e.id,
			"bounds", e.Bounds().String(),
		)
		e.Disconnect()
		g.unwireEdge(e)
		return nil, fmt.Errorf("%w: edge %s at %s", ErrOutOfBounds, e.id, e.Bounds())
	}

	g.edges[e.id] = e
	g.edgeOrder = append(g.edgeOrder, e.id)
	g.linkIncident(e.sourceNodeID, e.id)
	g.linkIncident(e.targetNodeID, e.id)

	g.emitter.Emit(EventEdgeAdded, EdgeEvent{Edge: e})
	return e, nil
}

// wireEdge attaches the graph's listener to a freshly constructed edge.
func (g *Graph) wireEdge(e *Edge) {
	g.edgeSubs[e.id] = e.emitter.OnAny(func(ev events.Event) {
		switch ev.Type {
		case EventConnected:
			g.emitter.Emit(EventPortConnected, EdgeEvent{Edge: e})
		case EventDisconnected:
			g.emitter.Emit(EventPortDisconnected, ev.Data)
		}
	})
}

func (g *Graph) unwireEdge(e *Edge) {
	if sub, ok := g.edgeSubs[e.id]; ok {
		e.Off(sub)
		delete(g.edgeSubs, e.id)
	}
}

func (g *Graph) linkIncident(nodeID, edgeID string) {
	set, ok := g.incident[nodeID]
	if !ok {
		set = make(map[string]struct{})
		g.incident[nodeID] = set
	}
	set[edgeID] = struct{}{}
}

func (g *Graph) unlinkIncident(nodeID, edgeID string) {
	if set, ok := g.incident[nodeID]; ok {
		delete(set, edgeID)
		if len(set) == 0 {
			delete(g.incident, nodeID)
		}
	}
}

// AddEdge connects an output port to an input port.
//
// Description:
//
//	Returns ErrIncompatiblePorts without attempting construction when the
//	ports have the same kind. Otherwise the edge ID is
//	EdgeID(source, target) and construction is delegated to CreateEdge with
//	the graph as port lookup. Construction failures are returned as errors;
//	a nil Edge always means no edge was created.
func (g *Graph) AddEdge(source, target *Port) (*Edge, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: nil endpoint", ErrPortNotFound)
	}
	if !source.CanConnect(target) {
		recordMutation("create_edge", false)
		return nil, fmt.Errorf("%w: %s and %s are both %s",
			ErrIncompatiblePorts, source.id, target.id, source.kind)
	}
	return g.CreateEdge(EdgeData{
		ID:           EdgeID(source.id, target.id),
		SourcePortID: source.id,
		TargetPortID: target.id,
	}, g)
}

// AddEdges connects each pair in order and returns the edges created.
// Failing pairs are logged and omitted; there is no rollback.
func (g *Graph) AddEdges(pairs []PortPair) []*Edge {
	out := make([]*Edge, 0, len(pairs))
	for _, pair := range pairs {
		e, err := g.AddEdge(pair.Source, pair.Target)
		if err != nil {
			g.logger.Debug("skipping edge", "error", err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetEdge returns the edge with the given ID.
func (g *Graph) GetEdge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// GetEdges returns all edges in insertion order.
func (g *Graph) GetEdges() []*Edge {
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out
}

// EdgesOf returns the edges with an endpoint on nodeID, in insertion order.
func (g *Graph) EdgesOf(nodeID string) []*Edge {
	set := g.incident[nodeID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Edge, 0, len(set))
	for _, id := range g.edgeOrder {
		if _, ok := set[id]; ok {
			out = append(out, g.edges[id])
		}
	}
	return out
}

// RemoveEdge evicts an edge from the index, disconnects it, deletes it and
// emits EventEdgeRemoved.
//
// Outputs:
//
//	bool - False if no edge has this ID.
func (g *Graph) RemoveEdge(id string) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}

	g.edgeIndex.Remove(id)
	e.Disconnect()
	g.unwireEdge(e)

	delete(g.edges, id)
	g.edgeOrder = removeID(g.edgeOrder, id)
	g.unlinkIncident(e.sourceNodeID, id)
	g.unlinkIncident(e.targetNodeID, id)

	recordMutation("remove_edge", true)
	g.emitter.Emit(EventEdgeRemoved, RemovedEvent{ID: id})
	return true
}

// RemoveEdges removes edges in order and returns the IDs actually removed.
func (g *Graph) RemoveEdges(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if g.RemoveEdge(id) {
			out = append(out, id)
		}
	}
	return out
}

// =============================================================================
// Whole graph
// =============================================================================

// Clear empties both indexes, then removes every edge, then every node.
// Removal events fire for each entity.
func (g *Graph) Clear() {
	g.nodeIndex.Clear()
	g.edgeIndex.Clear()

	for _, id := range slices.Clone(g.edgeOrder) {
		g.RemoveEdge(id)
	}
	for _, id := range slices.Clone(g.nodeOrder) {
		g.RemoveNode(id)
	}
}

// GetNodesInBounds returns the nodes whose indexed bounds intersect region.
// IDs that no longer resolve are dropped.
func (g *Graph) GetNodesInBounds(region geom.Rect) []*Node {
	start := time.Now()
	items := g.nodeIndex.Query(region)
	out := make([]*Node, 0, len(items))
	for _, item := range items {
		if n, ok := g.nodes[item.ID]; ok {
			out = append(out, n)
		}
	}
	recordQuery("nodes", time.Since(start), len(out))
	return out
}

// GetEdgesInBounds returns the edges whose indexed bounds intersect region.
// IDs that no longer resolve are dropped.
func (g *Graph) GetEdgesInBounds(region geom.Rect) []*Edge {
	start := time.Now()
	items := g.edgeIndex.Query(region)
	out := make([]*Edge, 0, len(items))
	for _, item := range items {
		if e, ok := g.edges[item.ID]; ok {
			out = append(out, e)
		}
	}
	recordQuery("edges", time.Since(start), len(out))
	return out
}

// IndexStats describes the state of the spatial indexes.
type IndexStats struct {
	NodeEntries  int `json:"node_entries"`
	EdgeEntries  int `json:"edge_entries"`
	NodeMaxDepth int `json:"node_max_depth"`
	EdgeMaxDepth int `json:"edge_max_depth"`
}

// IndexStats reports entry counts and the deepest occupied level per index.
func (g *Graph) IndexStats() IndexStats {
	return IndexStats{
		NodeEntries:  g.nodeIndex.Len(),
		EdgeEntries:  g.edgeIndex.Len(),
		NodeMaxDepth: g.nodeIndex.MaxStoredDepth(),
		EdgeMaxDepth: g.edgeIndex.MaxStoredDepth(),
	}
}

func removeID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
