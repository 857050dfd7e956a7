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
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/LogicGraph/services/diagram/events"
	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
)

func newTestGraph(opts ...Option) *Graph {
	return New("g1", "G", append([]Option{WithLogger(discardLogger())}, opts...)...)
}

// connectedPair builds n1 at (0,0) with output o1 and n2 at (100,0) with
// input i1, both with zero port offsets, and connects them.
func connectedPair(t *testing.T, g *Graph) (*Node, *Node, *Edge) {
	t.Helper()
	zero := &geom.Point{}
	n1, err := g.CreateNode(NodeData{ID: "n1", Outputs: []PortData{{ID: "o1", Offset: zero}}})
	require.NoError(t, err)
	n2, err := g.CreateNode(NodeData{ID: "n2", X: 100, Inputs: []PortData{{ID: "i1", Offset: zero}}})
	require.NoError(t, err)

	o1, _ := n1.Output("o1")
	i1, _ := n2.Input("i1")
	e, err := g.AddEdge(o1, i1)
	require.NoError(t, err)
	require.NotNil(t, e)
	return n1, n2, e
}

func ids[T interface{ ID() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID()
	}
	return out
}

func TestGraph_ConnectThenRemoveNodeScenario(t *testing.T) {
	g := newTestGraph()
	assert.Equal(t, "g1", g.ID())
	assert.Equal(t, "G", g.Name())

	_, _, e1 := connectedPair(t, g)
	assert.Equal(t, "edge-o1-i1", e1.ID())
	assert.Equal(t, geom.NewRect(0, 0, 100, 0), e1.Bounds())

	assert.True(t, g.RemoveNode("n1"))

	_, ok := g.GetEdge(e1.ID())
	assert.False(t, ok)
	_, ok = g.GetNode("n1")
	assert.False(t, ok)
	_, ok = g.GetNode("n2")
	assert.True(t, ok)
	assert.Empty(t, g.GetEdges())
	assert.Empty(t, g.EdgesOf("n2"))
	assert.NoError(t, g.Validate())
}

func TestGraph_EventOrder(t *testing.T) {
	g := newTestGraph()
	rec := events.NewRecorder()
	g.OnAny(rec.Handle)

	n1, _, _ := connectedPair(t, g)
	assert.Equal(t, []events.Type{
		EventNodeAdded, EventNodeAdded, EventPortConnected, EventEdgeAdded,
	}, rec.Types())

	rec.Clear()
	n1.SetPosition(5, 5)
	assert.Equal(t, []events.Type{EventNodeMoving, EventNodeMoved}, rec.Types())

	rec.Clear()
	g.RemoveNode("n1")
	assert.Equal(t, []events.Type{
		EventPortDisconnected, EventEdgeRemoved, EventNodeRemoved,
	}, rec.Types())
	assert.Equal(t, RemovedEvent{ID: "edge-o1-i1"}, rec.Events[1].Data)
	assert.Equal(t, RemovedEvent{ID: "n1"}, rec.Events[2].Data)
}

func TestGraph_AddEdge_EndpointRemovedByConnectListener(t *testing.T) {
	g := newTestGraph()
	zero := &geom.Point{}
	n1, err := g.CreateNode(NodeData{ID: "n1", Outputs: []PortData{{ID: "o1", Offset: zero}}})
	require.NoError(t, err)
	n2, err := g.CreateNode(NodeData{ID: "n2", X: 100, Inputs: []PortData{{ID: "i1", Offset: zero}}})
	require.NoError(t, err)
	o1, _ := n1.Output("o1")
	i1, _ := n2.Input("i1")

	g.On(EventPortConnected, func(events.Event) { g.RemoveNode("n1") })
	rec := events.NewRecorder()
	g.OnAny(rec.Handle)

	e, err := g.AddEdge(o1, i1)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	assert.Zero(t, g.EdgeCount())
	assert.Empty(t, g.EdgesOf("n1"))
	assert.Empty(t, g.EdgesOf("n2"))
	assert.Empty(t, g.GetEdgesInBounds(g.WorldBounds()))
	assert.NoError(t, g.Validate())
	assert.Empty(t, rec.ByType(EventEdgeAdded))
	assert.Len(t, rec.ByType(EventPortDisconnected), 1)
}

func TestGraph_NoDanglingEdgeVisibleDuringRemoval(t *testing.T) {
	g := newTestGraph()
	connectedPair(t, g)

	var nodePresent []bool
	g.On(EventEdgeRemoved, func(events.Event) {
		_, ok := g.GetNode("n1")
		nodePresent = append(nodePresent, ok)
	})
	g.On(EventNodeRemoved, func(events.Event) {
		assert.Empty(t, g.GetEdges())
	})

	g.RemoveNode("n1")

	assert.Equal(t, []bool{true}, nodePresent)
}

func TestGraph_AddEdgeIncompatible(t *testing.T) {
	g := newTestGraph()
	a, err := g.CreateNode(NodeData{ID: "a", Inputs: []PortData{{ID: "a.in"}}, Outputs: []PortData{{ID: "a.out"}}})
	require.NoError(t, err)
	b, err := g.CreateNode(NodeData{ID: "b", X: 200, Inputs: []PortData{{ID: "b.in"}}, Outputs: []PortData{{ID: "b.out"}}})
	require.NoError(t, err)

	aIn, _ := a.Input("a.in")
	aOut, _ := a.Output("a.out")
	bIn, _ := b.Input("b.in")
	bOut, _ := b.Output("b.out")

	tests := []struct {
		name           string
		source, target *Port
	}{
		{"input to input", aIn, bIn},
		{"output to output", aOut, bOut},
		{"input to output", bIn, aOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := g.AddEdge(tt.source, tt.target)
			assert.Nil(t, e)
			assert.ErrorIs(t, err, ErrIncompatiblePorts)
		})
	}
	assert.Equal(t, 0, g.EdgeCount())

	e, err := g.AddEdge(aOut, bIn)
	require.NoError(t, err)
	assert.Equal(t, "edge-a.out-b.in", e.ID())

	e, err = g.AddEdge(aOut, bIn)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrDuplicateEdge)

	e, err = g.AddEdge(nil, bIn)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestGraph_AddEdgeRejectsPortFromAnotherGraph(t *testing.T) {
	g := newTestGraph()
	other := newTestGraph()
	a, err := g.CreateNode(NodeData{ID: "a", Outputs: []PortData{{ID: "out"}}})
	require.NoError(t, err)
	b, err := other.CreateNode(NodeData{ID: "b", Inputs: []PortData{{ID: "in"}}})
	require.NoError(t, err)

	out, _ := a.Output("out")
	in, _ := b.Input("in")
	e, err := g.AddEdge(out, in)

	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestGraph_CreateNodeErrors(t *testing.T) {
	g := newTestGraph(WithWorldBounds(geom.NewRect(0, 0, 1000, 1000)))

	_, err := g.CreateNode(NodeData{ID: "n", X: 500, Y: 500, Outputs: []PortData{{ID: "p"}}})
	require.NoError(t, err)

	_, err = g.CreateNode(NodeData{ID: "n", X: 500, Y: 500})
	assert.ErrorIs(t, err, ErrDuplicateNode)

	_, err = g.CreateNode(NodeData{ID: "m", X: 100, Y: 100, Inputs: []PortData{{ID: "p"}}})
	assert.ErrorIs(t, err, ErrDuplicatePort)

	_, err = g.CreateNode(NodeData{ID: "far", X: 5000, Y: 5000})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	assert.Equal(t, 1, g.NodeCount())
	assert.NoError(t, g.Validate())
}

func TestGraph_MoveThenQueryReflectsNewBounds(t *testing.T) {
	g := newTestGraph()
	n1, _, e := connectedPair(t, g)

	oldRegion := geom.NewRect(-10, -10, 20, 20)
	require.Equal(t, []string{"n1"}, ids(g.GetNodesInBounds(oldRegion)))

	n1.SetPosition(1000, 1000)

	assert.Empty(t, g.GetNodesInBounds(oldRegion))
	assert.Equal(t, []string{"n1"}, ids(g.GetNodesInBounds(geom.NewRect(990, 990, 20, 20))))
	assert.Equal(t, geom.NewRect(100, 0, 900, 1000), e.Bounds())
	assert.Equal(t, []string{e.ID()}, ids(g.GetEdgesInBounds(geom.NewRect(500, 500, 1, 1))))
	assert.NoError(t, g.Validate())
}

func TestGraph_MovingDoesNotReindexUntilCommit(t *testing.T) {
	g := newTestGraph()
	n1, _, _ := connectedPair(t, g)

	var during []string
	g.On(EventNodeMoving, func(events.Event) {
		during = ids(g.GetNodesInBounds(geom.NewRect(-1, -1, 2, 2)))
	})

	n1.SetPosition(500, 500)

	assert.Equal(t, []string{"n1"}, during)
}

func TestGraph_ResizeReindexes(t *testing.T) {
	g := newTestGraph()
	n, err := g.CreateNode(NodeData{ID: "n"})
	require.NoError(t, err)
	rec := events.NewRecorder()
	g.On(EventNodeResized, rec.Handle)

	require.NoError(t, n.SetSize(1000, 1000))

	assert.Equal(t, 1, rec.Count())
	assert.Equal(t, []string{"n"}, ids(g.GetNodesInBounds(geom.NewRect(400, 400, 1, 1))))
	assert.NoError(t, g.Validate())
}

func TestGraph_MoveOutsideWorldAndBack(t *testing.T) {
	g := newTestGraph(WithWorldBounds(geom.NewRect(-500, -500, 1000, 1000)))
	n1, _, _ := connectedPair(t, g)

	n1.SetPosition(10000, 0)
	assert.Equal(t, []string{"n2"}, ids(g.GetNodesInBounds(geom.NewRect(-500, -500, 1000, 1000))))
	assert.Equal(t, 0, g.IndexStats().EdgeEntries)
	assert.NoError(t, g.Validate())

	n1.SetPosition(0, 0)
	assert.Equal(t, []string{"n1"}, ids(g.GetNodesInBounds(geom.NewRect(-1, -1, 2, 2))))
	assert.Equal(t, 1, g.IndexStats().EdgeEntries)
	assert.NoError(t, g.Validate())
}

func TestGraph_RemovingPortRemovesItsEdges(t *testing.T) {
	g := newTestGraph()
	n1, n2, e := connectedPair(t, g)
	_, err := n2.AddInput(PortData{ID: "i2"})
	require.NoError(t, err)
	o1, _ := n1.Output("o1")
	i2, _ := n2.Input("i2")
	e2, err := g.AddEdge(o1, i2)
	require.NoError(t, err)

	rec := events.NewRecorder()
	g.OnAny(rec.Handle)

	assert.True(t, n2.RemoveInput("i1"))

	_, ok := g.GetEdge(e.ID())
	assert.False(t, ok)
	_, ok = g.GetEdge(e2.ID())
	assert.True(t, ok)
	_, ok = g.GetPort("i1")
	assert.False(t, ok)
	assert.Equal(t, []events.Type{
		EventPortDisconnected, EventEdgeRemoved, EventPortRemoved,
	}, rec.Types())
	assert.NoError(t, g.Validate())
}

func TestGraph_PortsAddedLaterAreRegistered(t *testing.T) {
	g := newTestGraph()
	n, err := g.CreateNode(NodeData{ID: "n"})
	require.NoError(t, err)
	m, err := g.CreateNode(NodeData{ID: "m", X: 300})
	require.NoError(t, err)
	rec := events.NewRecorder()
	g.On(EventPortAdded, rec.Handle)

	p, err := n.AddOutput(PortData{ID: "late"})
	require.NoError(t, err)

	got, ok := g.GetPort("late")
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, 1, rec.Count())

	_, err = m.AddInput(PortData{ID: "late"})
	assert.ErrorIs(t, err, ErrDuplicatePort)
	assert.NoError(t, g.Validate())
}

func TestGraph_PortValueChangesBubble(t *testing.T) {
	g := newTestGraph()
	n1, _, _ := connectedPair(t, g)
	rec := events.NewRecorder()
	g.On(EventPortValueChanged, rec.Handle)

	o1, _ := n1.Output("o1")
	o1.SetValue(true)

	require.Equal(t, 1, rec.Count())
	assert.Equal(t, ValueEvent{Port: o1, Value: true}, rec.Events[0].Data)
}

func TestGraph_RemovedNodeStopsBroadcasting(t *testing.T) {
	g := newTestGraph()
	n1, _, _ := connectedPair(t, g)
	g.RemoveNode("n1")
	rec := events.NewRecorder()
	g.OnAny(rec.Handle)

	n1.SetPosition(1, 1)

	assert.Equal(t, 0, rec.Count())
}

func TestGraph_BatchOperations(t *testing.T) {
	g := newTestGraph()

	nodes := g.AddNodes([]NodeData{
		{ID: "a", Outputs: []PortData{{ID: "a.out"}}},
		{ID: "a"},
		{ID: "b", X: 200, Inputs: []PortData{{ID: "b.in"}}},
		{ID: "c", X: 400, Inputs: []PortData{{ID: "c.in"}}},
	})
	require.Equal(t, []string{"a", "b", "c"}, ids(nodes))

	aOut, _ := g.GetPort("a.out")
	bIn, _ := g.GetPort("b.in")
	cIn, _ := g.GetPort("c.in")
	edges := g.AddEdges([]PortPair{
		{Source: aOut, Target: bIn},
		{Source: bIn, Target: cIn},
		{Source: aOut, Target: cIn},
	})
	require.Equal(t, []string{"edge-a.out-b.in", "edge-a.out-c.in"}, ids(edges))

	removed := g.RemoveEdges([]string{"missing", "edge-a.out-b.in"})
	assert.Equal(t, []string{"edge-a.out-b.in"}, removed)

	removedNodes := g.RemoveNodes([]string{"c", "zzz", "c"})
	assert.Equal(t, []string{"c"}, removedNodes)
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, []string{"a", "b"}, ids(g.GetNodes()))
	assert.NoError(t, g.Validate())
}

func TestGraph_Clear(t *testing.T) {
	g := newTestGraph()
	connectedPair(t, g)
	rec := events.NewRecorder()
	g.OnAny(rec.Handle)

	g.Clear()

	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, IndexStats{NodeMaxDepth: -1, EdgeMaxDepth: -1}, g.IndexStats())
	assert.Equal(t, []events.Type{
		EventPortDisconnected, EventEdgeRemoved, EventNodeRemoved, EventNodeRemoved,
	}, rec.Types())
	_, ok := g.GetPort("o1")
	assert.False(t, ok)
	assert.NoError(t, g.Validate())

	connectedPair(t, g)
	assert.NoError(t, g.Validate())
}

func TestGraph_NodeAtReturnsTopmost(t *testing.T) {
	g := newTestGraph()
	_, err := g.CreateNode(NodeData{ID: "under", X: 0, Y: 0})
	require.NoError(t, err)
	_, err = g.CreateNode(NodeData{ID: "over", X: 20, Y: 0})
	require.NoError(t, err)

	n, ok := g.NodeAt(geom.Point{X: 10, Y: 0})
	require.True(t, ok)
	assert.Equal(t, "over", n.ID())

	n, ok = g.NodeAt(geom.Point{X: -45, Y: 0})
	require.True(t, ok)
	assert.Equal(t, "under", n.ID())

	_, ok = g.NodeAt(geom.Point{X: 500, Y: 500})
	assert.False(t, ok)
}

func TestGraph_QueryMatchesBruteForce(t *testing.T) {
	g := newTestGraph()
	rng := rand.New(rand.NewPCG(3, 5))
	world := g.WorldBounds()

	randomPoint := func() (float64, float64) {
		return world.X + 200 + rng.Float64()*(world.Width-400),
			world.Y + 200 + rng.Float64()*(world.Height-400)
	}

	for i := range 200 {
		x, y := randomPoint()
		_, err := g.CreateNode(NodeData{
			ID:      fmt.Sprintf("n%d", i),
			X:       x,
			Y:       y,
			Width:   ptr(1 + rng.Float64()*150),
			Height:  ptr(1 + rng.Float64()*150),
			Inputs:  []PortData{{ID: fmt.Sprintf("n%d.in", i)}},
			Outputs: []PortData{{ID: fmt.Sprintf("n%d.out", i)}},
		})
		require.NoError(t, err)
	}
	for range 150 {
		src, _ := g.GetPort(fmt.Sprintf("n%d.out", rng.IntN(200)))
		dst, _ := g.GetPort(fmt.Sprintf("n%d.in", rng.IntN(200)))
		_, _ = g.AddEdge(src, dst)
	}
	for range 100 {
		n, _ := g.GetNode(fmt.Sprintf("n%d", rng.IntN(200)))
		n.SetPosition(randomPoint())
	}
	require.NoError(t, g.Validate())

	regions := []geom.Rect{
		world,
		{X: 0, Y: 0},
		{X: world.X, Y: world.Y},
		{X: world.Right(), Y: world.Bottom()},
	}
	for range 200 {
		x, y := randomPoint()
		regions = append(regions, geom.NewRect(x, y, rng.Float64()*3000, rng.Float64()*3000))
	}

	for _, region := range regions {
		wantNodes, wantEdges := []string{}, []string{}
		for _, n := range g.GetNodes() {
			if n.Bounds().Intersects(region) {
				wantNodes = append(wantNodes, n.ID())
			}
		}
		for _, e := range g.GetEdges() {
			if e.Bounds().Intersects(region) {
				wantEdges = append(wantEdges, e.ID())
			}
		}

		gotNodes := ids(g.GetNodesInBounds(region))
		gotEdges := ids(g.GetEdgesInBounds(region))
		sort.Strings(wantNodes)
		sort.Strings(wantEdges)
		sort.Strings(gotNodes)
		sort.Strings(gotEdges)

		assert.Equal(t, wantNodes, gotNodes, "nodes in %s", region)
		assert.Equal(t, wantEdges, gotEdges, "edges in %s", region)
	}
}

func TestGraph_ValidateDetectsStaleIndex(t *testing.T) {
	g := newTestGraph()
	connectedPair(t, g)

	g.nodeIndex.Remove("n2")
	g.edgeIndex.Remove("edge-o1-i1")
	g.edgeIndex.Insert("edge-o1-i1", geom.NewRect(0, 0, 1, 1))

	err := g.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Contains(t, err.Error(), "node n2 not indexed")
	assert.Contains(t, err.Error(), "edge edge-o1-i1 indexed at")
}
