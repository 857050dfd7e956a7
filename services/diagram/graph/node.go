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

// Cache keys used by Node.
const (
	nodeKeyPosition = "position"
	nodeKeyBounds   = "bounds"
	nodeKeyPorts    = "ports"
)

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// DefaultNodeSize is the size of a node created without explicit dimensions.
var DefaultNodeSize = Size{Width: 100, Height: 60}

// portLists is the memoized value behind Inputs and Outputs.
type portLists struct {
	inputs  []*Port
	outputs []*Port
}

// portSet is an insertion-ordered id -> port mapping.
type portSet struct {
	byID  map[string]*Port
	order []string
}

func newPortSet() *portSet {
	return &portSet{byID: make(map[string]*Port)}
}

func (s *portSet) add(p *Port) {
	s.byID[p.id] = p
	s.order = append(s.order, p.id)
}

func (s *portSet) remove(id string) (*Port, bool) {
	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return p, true
}

func (s *portSet) list() []*Port {
	out := make([]*Port, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Node is a positioned, sized entity owning ordered input and output ports.
//
// Description:
//
//	Position is the node's center; Bounds is the rectangle of Size centered
//	on it. Derived geometry is memoized in a per-node cache and every
//	mutator clears exactly the keys it invalidates, so mutation always goes
//	through the methods below.
//
// Ownership:
//
//	Nodes are created only by a Graph and are owned by it. A Node owns its
//	ports exclusively.
//
// Thread Safety: NOT safe for concurrent use.
type Node struct {
	id       string
	name     string
	typ      string
	position geom.Point
	size     Size

	inputs  *portSet
	outputs *portSet

	// portSubs maps port ID to this node's value:changed subscription.
	portSubs map[string]string

	// portTaken reports whether a port ID is already used elsewhere in the
	// owning graph. Nil means only local uniqueness is checked.
	portTaken func(id string) bool

	cache   *cache.Cache
	emitter *events.Emitter
	logger  *slog.Logger
}

// nodeConfig carries the graph-provided dependencies of a node.
type nodeConfig struct {
	defaultSize Size
	portTaken   func(id string) bool
	logger      *slog.Logger
}

// newNode builds a node and its ports from a data snapshot.
//
// Errors:
//
//	ErrInvalidNode - Empty ID
//	ErrInvalidSize - Negative width or height
//	ErrInvalidPort - Port with empty ID or a kind contradicting its list
//	ErrDuplicatePort - Port ID repeated in data or used elsewhere
func newNode(data NodeData, cfg nodeConfig) (*Node, error) {
	if data.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidNode)
	}

	size := cfg.defaultSize
	if data.Width != nil {
		size.Width = *data.Width
	}
	if data.Height != nil {
		size.Height = *data.Height
	}
	if size.Width < 0 || size.Height < 0 {
		return nil, fmt.Errorf("%w: node %s has size %gx%g", ErrInvalidSize, data.ID, size.Width, size.Height)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	n := &Node{
		id:        data.ID,
		name:      data.Name,
		typ:       data.Type,
		position:  geom.Point{X: data.X, Y: data.Y},
		size:      size,
		inputs:    newPortSet(),
		outputs:   newPortSet(),
		portSubs:  make(map[string]string),
		portTaken: cfg.portTaken,
		cache:     cache.New("node"),
		emitter:   events.NewEmitter(events.WithLogger(logger)),
		logger:    logger,
	}

	for _, pd := range data.Inputs {
		if _, err := n.addPort(pd, PortKindInput, false); err != nil {
			return nil, err
		}
	}
	for _, pd := range data.Outputs {
		if _, err := n.addPort(pd, PortKindOutput, false); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// ID returns the node ID, unique within its graph.
func (n *Node) ID() string { return n.id }

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// Type returns the node's type tag.
func (n *Node) Type() string { return n.typ }

// Size returns the current width and height.
func (n *Node) Size() Size { return n.size }

// Position returns the node's center. Memoized.
func (n *Node) Position() geom.Point {
	return cache.Memo(n.cache, nodeKeyPosition, func() geom.Point {
		return n.position
	})
}

// Bounds returns the rectangle of Size centered on Position. Memoized.
func (n *Node) Bounds() geom.Rect {
	return cache.Memo(n.cache, nodeKeyBounds, func() geom.Rect {
		return geom.CenteredRect(n.position, n.size.Width, n.size.Height)
	})
}

// Inputs returns the input ports in insertion order. Memoized; callers must
// not modify the returned slice.
func (n *Node) Inputs() []*Port {
	return n.ports().inputs
}

// Outputs returns the output ports in insertion order. Memoized; callers
// must not modify the returned slice.
func (n *Node) Outputs() []*Port {
	return n.ports().outputs
}

func (n *Node) ports() portLists {
	return cache.Memo(n.cache, nodeKeyPorts, func() portLists {
		return portLists{inputs: n.inputs.list(), outputs: n.outputs.list()}
	})
}

// Input returns the input port with the given ID.
func (n *Node) Input(id string) (*Port, bool) {
	p, ok := n.inputs.byID[id]
	return p, ok
}

// Output returns the output port with the given ID.
func (n *Node) Output(id string) (*Port, bool) {
	p, ok := n.outputs.byID[id]
	return p, ok
}

// Port returns the input or output port with the given ID.
func (n *Node) Port(id string) (*Port, bool) {
	if p, ok := n.inputs.byID[id]; ok {
		return p, true
	}
	return n.Output(id)
}

// PortCount returns the number of input and output ports.
func (n *Node) PortCount() int {
	return len(n.inputs.order) + len(n.outputs.order)
}

// PortPosition returns the absolute position of an owned port.
func (n *Node) PortPosition(id string) (geom.Point, bool) {
	p, ok := n.Port(id)
	if !ok {
		return geom.Point{}, false
	}
	return n.Position().Add(p.offset), true
}

// SetPosition moves the node's center to (x, y).
//
// Description:
//
//	Emits EventMoving while the old position is still observable, commits
//	the new coordinates, clears the position and bounds cache entries, then
//	emits EventMoved.
func (n *Node) SetPosition(x, y float64) {
	n.emitter.Emit(EventMoving, MoveEvent{Node: n, X: x, Y: y})

	n.position = geom.Point{X: x, Y: y}
	n.cache.Delete(nodeKeyPosition, nodeKeyBounds)

	n.emitter.Emit(EventMoved, MoveEvent{Node: n, X: x, Y: y})
}

// SetSize changes the node's dimensions and emits EventResized.
//
// Only the bounds cache entry depends on size. Port offsets are fixed at
// creation and do not follow the new size.
//
// Errors:
//
//	ErrInvalidSize - Negative width or height. The node is unchanged.
func (n *Node) SetSize(width, height float64) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidSize, width, height)
	}
	n.size = Size{Width: width, Height: height}
	n.cache.Delete(nodeKeyBounds)

	n.emitter.Emit(EventResized, ResizeEvent{Node: n, Width: width, Height: height})
	return nil
}

// AddInput creates an input port and emits EventPortAdded.
//
// Errors:
//
//	ErrInvalidPort - Empty ID or a kind other than "input"
//	ErrDuplicatePort - ID already used in the graph
func (n *Node) AddInput(data PortData) (*Port, error) {
	return n.addPort(data, PortKindInput, true)
}

// AddOutput creates an output port and emits EventPortAdded.
//
// Errors:
//
//	ErrInvalidPort - Empty ID or a kind other than "output"
//	ErrDuplicatePort - ID already used in the graph
func (n *Node) AddOutput(data PortData) (*Port, error) {
	return n.addPort(data, PortKindOutput, true)
}

// addPort validates and attaches a port. emit is false while the node is
// being constructed, before anyone can be listening.
func (n *Node) addPort(data PortData, kind PortKind, emit bool) (*Port, error) {
	if data.ID == "" {
		return nil, fmt.Errorf("%w: empty id on node %s", ErrInvalidPort, n.id)
	}
	if data.Kind != "" {
		declared, err := ParsePortKind(data.Kind)
		if err != nil {
			return nil, err
		}
		if declared != kind {
			return nil, fmt.Errorf("%w: port %s declared %s but added as %s", ErrInvalidPort, data.ID, declared, kind)
		}
	}
	if _, exists := n.Port(data.ID); exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePort, data.ID)
	}
	if n.portTaken != nil && n.portTaken(data.ID) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePort, data.ID)
	}

	offset := n.defaultOffset(kind)
	if data.Offset != nil {
		offset = *data.Offset
	}

	p := newPort(data, kind, n.id, offset, events.NewEmitter(events.WithLogger(n.logger)))
	if kind == PortKindInput {
		n.inputs.add(p)
	} else {
		n.outputs.add(p)
	}
	n.portSubs[p.id] = p.On(EventValueChanged, func(e events.Event) {
		n.emitter.Emit(EventPortValue, e.Data)
	})
	n.cache.Delete(nodeKeyPorts)

	if emit {
		n.emitter.Emit(EventPortAdded, PortEvent{Port: p})
	}
	return p, nil
}

// defaultOffset places inputs on the left edge and outputs on the right
// edge, vertically centered.
func (n *Node) defaultOffset(kind PortKind) geom.Point {
	if kind == PortKindInput {
		return geom.Point{X: -n.size.Width / 2}
	}
	return geom.Point{X: n.size.Width / 2}
}

// RemoveInput deletes an input port and emits EventPortRemoved.
//
// Outputs:
//
//	bool - True if the port existed.
func (n *Node) RemoveInput(id string) bool {
	return n.removePort(n.inputs, id)
}

// RemoveOutput deletes an output port and emits EventPortRemoved.
//
// Outputs:
//
//	bool - True if the port existed.
func (n *Node) RemoveOutput(id string) bool {
	return n.removePort(n.outputs, id)
}

func (n *Node) removePort(set *portSet, id string) bool {
	p, ok := set.remove(id)
	if !ok {
		return false
	}
	if sub, ok := n.portSubs[id]; ok {
		p.Off(sub)
		delete(n.portSubs, id)
	}
	n.cache.Delete(nodeKeyPorts)

	n.emitter.Emit(EventPortRemoved, RemovedEvent{ID: id, OwnerID: n.id})
	return true
}

// On subscribes to this node's events.
func (n *Node) On(eventType events.Type, handler events.Handler) string {
	return n.emitter.On(eventType, handler)
}

// Off removes a subscription created by On.
func (n *Node) Off(id string) bool {
	return n.emitter.Off(id)
}

// CacheStats returns the hit and miss counts of the node's geometry cache.
func (n *Node) CacheStats() cache.Stats {
	return n.cache.Stats()
}

// ToData snapshots the node for serialization.
func (n *Node) ToData() NodeData {
	width, height := n.size.Width, n.size.Height
	data := NodeData{
		ID:     n.id,
		Name:   n.name,
		Type:   n.typ,
		X:      n.position.X,
		Y:      n.position.Y,
		Width:  &width,
		Height: &height,
	}
	for _, p := range n.Inputs() {
		data.Inputs = append(data.Inputs, p.ToData())
	}
	for _, p := range n.Outputs() {
		data.Outputs = append(data.Outputs, p.ToData())
	}
	return data
}
