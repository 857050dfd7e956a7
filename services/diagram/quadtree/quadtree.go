// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quadtree provides a spatial index over axis-aligned rectangles keyed
// by entity id.
//
// # Placement
//
// Items are placed containment-first: an item is handed down to the unique
// child quadrant that fully contains it, and stays at the deepest node that
// still contains it whole. Items straddling a quadrant boundary stay at the
// parent, so no item is ever stored twice. The root acts as a flat bucket
// until it holds MaxItemsPerRootLeaf items.
//
// # Removal
//
// Removal is by id only. The caller does not need to know the bounds an item
// was inserted with, which lets an owner re-index an entity after it moved.
//
// # Thread Safety
//
// QuadTree is NOT safe for concurrent use.
package quadtree

import (
	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default configuration values.
const (
	// MaxItemsPerRootLeaf is how many items the root stores directly before it
	// starts handing items down to its quadrants.
	MaxItemsPerRootLeaf = 4

	// MaxDepth is the deepest level a tree subdivides to. The root is depth 0.
	MaxDepth = 8
)

var rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "logicgraph_quadtree_rejected_total",
	Help: "Insertions rejected because the item lies outside the index bounds",
})

// Item is an indexed entry.
type Item struct {
	ID     string
	Bounds geom.Rect
}

// QuadTree is a node of the spatial index. The root is a QuadTree with depth
// 0; every subtree is a QuadTree as well.
type QuadTree struct {
	bounds   geom.Rect
	items    []Item
	children []*QuadTree // nil or exactly 4: TL, TR, BL, BR
	depth    int

	maxDepth     int
	rootCapacity int
}

// Option configures a QuadTree.
type Option func(*QuadTree)

// WithMaxDepth overrides MaxDepth.
func WithMaxDepth(depth int) Option {
	return func(q *QuadTree) {
		if depth >= 0 {
			q.maxDepth = depth
		}
	}
}

// WithRootCapacity overrides MaxItemsPerRootLeaf.
func WithRootCapacity(n int) Option {
	return func(q *QuadTree) {
		if n >= 0 {
			q.rootCapacity = n
		}
	}
}

// New creates an empty index covering bounds.
//
// Example:
//
//	index := quadtree.New(geom.NewRect(-10000, -10000, 20000, 20000))
//	if !index.Insert("n1", node.Bounds()) {
//	    // outside the world: integrity error for the caller
//	}
func New(bounds geom.Rect, opts ...Option) *QuadTree {
	q := &QuadTree{
		bounds:       bounds,
		maxDepth:     MaxDepth,
		rootCapacity: MaxItemsPerRootLeaf,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Bounds returns the region covered by this node.
func (q *QuadTree) Bounds() geom.Rect {
	return q.bounds
}

// Depth returns the level of this node. The root is 0.
func (q *QuadTree) Depth() int {
	return q.depth
}

// Insert adds an item.
//
// Description:
//
//	Rejects items not fully contained in this node's bounds. At the root,
//	items are stored directly until the root bucket is full. Otherwise the
//	node subdivides (once) and offers the item to its quadrants in order
//	TL, TR, BL, BR; the first quadrant containing it takes it. Items no
//	quadrant contains, and items at MaxDepth, are stored at this node.
//
// Outputs:
//
//	bool - False only when bounds lies outside this node. At the root this
//	       means the entity could not be indexed and must be treated as an
//	       integrity error by the caller.
func (q *QuadTree) Insert(id string, bounds geom.Rect) bool {
	if !q.bounds.Contains(bounds) {
		if q.depth == 0 {
			rejectedTotal.Inc()
		}
		return false
	}

	if q.depth == 0 && len(q.items) < q.rootCapacity {
		q.items = append(q.items, Item{ID: id, Bounds: bounds})
		return true
	}

	if q.depth < q.maxDepth {
		q.subdivide()
		for _, child := range q.children {
			if child.Insert(id, bounds) {
				return true
			}
		}
	}

	q.items = append(q.items, Item{ID: id, Bounds: bounds})
	return true
}

// subdivide creates the four quadrants if they do not exist yet.
func (q *QuadTree) subdivide() {
	if q.children != nil {
		return
	}
	quads := q.bounds.Quadrants()
	q.children = make([]*QuadTree, 4)
	for i, r := range quads {
		q.children[i] = &QuadTree{
			bounds:       r,
			depth:        q.depth + 1,
			maxDepth:     q.maxDepth,
			rootCapacity: q.rootCapacity,
		}
	}
}

// Query returns every stored item whose bounds intersect region.
//
// Description:
//
//	Intersection is closed: touching edges and zero-area rectangles count.
//	Subtrees whose bounds miss region are skipped. Items of this node come
//	before items of its quadrants (TL, TR, BL, BR).
func (q *QuadTree) Query(region geom.Rect) []Item {
	var out []Item
	q.query(region, &out)
	return out
}

func (q *QuadTree) query(region geom.Rect, out *[]Item) {
	if !q.bounds.Intersects(region) {
		return
	}
	for _, item := range q.items {
		if item.Bounds.Intersects(region) {
			*out = append(*out, item)
		}
	}
	for _, child := range q.children {
		child.query(region, out)
	}
}

// Remove deletes the first item with the given id found depth-first.
//
// Outputs:
//
//	bool - True if an item was removed.
func (q *QuadTree) Remove(id string) bool {
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	for _, child := range q.children {
		if child.Remove(id) {
			return true
		}
	}
	return false
}

// Clear drops every item and quadrant below and including this node.
func (q *QuadTree) Clear() {
	q.items = nil
	q.children = nil
}

// Len returns the number of items stored in this subtree.
func (q *QuadTree) Len() int {
	n := len(q.items)
	for _, child := range q.children {
		n += child.Len()
	}
	return n
}

// Items returns every item in this subtree, depth-first.
func (q *QuadTree) Items() []Item {
	out := make([]Item, 0, len(q.items))
	out = append(out, q.items...)
	for _, child := range q.children {
		out = append(out, child.Items()...)
	}
	return out
}

// Find returns the stored item with the given id.
func (q *QuadTree) Find(id string) (Item, bool) {
	for _, item := range q.items {
		if item.ID == id {
			return item, true
		}
	}
	for _, child := range q.children {
		if item, ok := child.Find(id); ok {
			return item, true
		}
	}
	return Item{}, false
}

// MaxStoredDepth returns the depth of the deepest node holding an item, or
// -1 for an empty tree.
func (q *QuadTree) MaxStoredDepth() int {
	deepest := -1
	if len(q.items) > 0 {
		deepest = q.depth
	}
	for _, child := range q.children {
		deepest = max(deepest, child.MaxStoredDepth())
	}
	return deepest
}
