// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quadtree

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var world = geom.NewRect(-10000, -10000, 20000, 20000)

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	sort.Strings(out)
	return out
}

func TestQuadTree_InsertRejectsOutsideBounds(t *testing.T) {
	q := New(world)

	assert.False(t, q.Insert("out", geom.NewRect(9990, 0, 20, 20)))
	assert.False(t, q.Insert("far", geom.NewRect(20000, 20000, 1, 1)))
	assert.Equal(t, 0, q.Len())

	assert.True(t, q.Insert("edge", geom.NewRect(9900, 9900, 100, 100)), "items touching the world border are inside")
	assert.True(t, q.Insert("world", world), "the world rectangle contains itself")
	assert.Equal(t, 2, q.Len())
}

func TestQuadTree_RootActsAsFlatBucket(t *testing.T) {
	q := New(world)
	for i := 0; i < MaxItemsPerRootLeaf; i++ {
		require.True(t, q.Insert(fmt.Sprintf("n%d", i), geom.NewRect(float64(i*200), 100, 50, 50)))
	}

	assert.Len(t, q.items, MaxItemsPerRootLeaf)
	assert.Nil(t, q.children, "root must not subdivide before it is full")

	require.True(t, q.Insert("fifth", geom.NewRect(5000, 5000, 50, 50)))
	assert.Len(t, q.items, MaxItemsPerRootLeaf)
	require.Len(t, q.children, 4)
	assert.Equal(t, 1, q.children[3].Len(), "fifth item belongs to the bottom-right quadrant")
	assert.Equal(t, MaxDepth, q.MaxStoredDepth(), "contained items descend to the deepest level")
}

func TestQuadTree_StraddlingItemStaysAtParent(t *testing.T) {
	q := New(world, WithRootCapacity(0))

	require.True(t, q.Insert("straddle", geom.NewRect(-50, -50, 100, 100)))

	require.Len(t, q.items, 1)
	assert.Equal(t, "straddle", q.items[0].ID)
	assert.Equal(t, 0, q.MaxStoredDepth())
}

func TestQuadTree_MaxDepthStoresAtLeaf(t *testing.T) {
	q := New(world, WithRootCapacity(0), WithMaxDepth(1))

	require.True(t, q.Insert("a", geom.NewRect(100, 100, 1, 1)))
	require.True(t, q.Insert("b", geom.NewRect(200, 200, 1, 1)))

	require.Len(t, q.children, 4)
	br := q.children[3]
	assert.Len(t, br.items, 2)
	assert.Nil(t, br.children, "nodes at max depth never subdivide")
}

func TestQuadTree_QueryQuadrant(t *testing.T) {
	q := New(world)
	placed := map[string]geom.Rect{
		"tl1": geom.NewRect(-5000, -5000, 100, 60),
		"tl2": geom.NewRect(-8000, -2000, 100, 60),
		"tr":  geom.NewRect(5000, -5000, 100, 60),
		"bl":  geom.NewRect(-5000, 5000, 100, 60),
		"br":  geom.NewRect(5000, 5000, 100, 60),
	}
	for id, r := range placed {
		require.True(t, q.Insert(id, r))
	}

	topLeft := world.Quadrants()[0]
	assert.Equal(t, []string{"tl1", "tl2"}, ids(q.Query(topLeft)))

	bottomRight := world.Quadrants()[3]
	assert.Equal(t, []string{"br"}, ids(q.Query(bottomRight)))

	assert.Equal(t, []string{"bl", "br", "tl1", "tl2", "tr"}, ids(q.Query(world)))
}

func TestQuadTree_QueryEdgeCases(t *testing.T) {
	q := New(world)
	require.True(t, q.Insert("a", geom.NewRect(0, 0, 10, 10)))
	require.True(t, q.Insert("corner", geom.NewRect(9990, 9990, 10, 10)))

	t.Run("zero area region inside item", func(t *testing.T) {
		assert.Equal(t, []string{"a"}, ids(q.Query(geom.NewRect(5, 5, 0, 0))))
	})
	t.Run("touching edge counts", func(t *testing.T) {
		assert.Equal(t, []string{"a"}, ids(q.Query(geom.NewRect(10, 0, 5, 5))))
	})
	t.Run("world corner", func(t *testing.T) {
		assert.Equal(t, []string{"corner"}, ids(q.Query(geom.NewRect(10000, 10000, 0, 0))))
	})
	t.Run("region outside world", func(t *testing.T) {
		assert.Empty(t, q.Query(geom.NewRect(20000, 20000, 10, 10)))
	})
}

func TestQuadTree_Remove(t *testing.T) {
	q := New(world)
	for i := 0; i < 10; i++ {
		require.True(t, q.Insert(fmt.Sprintf("n%d", i), geom.NewRect(float64(i*300), float64(i*300), 20, 20)))
	}

	assert.True(t, q.Remove("n2"), "root item")
	assert.True(t, q.Remove("n8"), "descended item")
	assert.False(t, q.Remove("n8"))
	assert.False(t, q.Remove("missing"))
	assert.Equal(t, 8, q.Len())

	_, ok := q.Find("n8")
	assert.False(t, ok)
	item, ok := q.Find("n9")
	require.True(t, ok)
	assert.Equal(t, geom.NewRect(2700, 2700, 20, 20), item.Bounds)
}

func TestQuadTree_RemoveThenReinsertReflectsNewBounds(t *testing.T) {
	q := New(world)
	require.True(t, q.Insert("n", geom.NewRect(-5000, -5000, 10, 10)))

	require.True(t, q.Remove("n"))
	require.True(t, q.Insert("n", geom.NewRect(5000, 5000, 10, 10)))

	assert.Empty(t, q.Query(geom.NewRect(-5000, -5000, 10, 10)))
	assert.Equal(t, []string{"n"}, ids(q.Query(geom.NewRect(5000, 5000, 1, 1))))
}

func TestQuadTree_Clear(t *testing.T) {
	q := New(world)
	for i := 0; i < 6; i++ {
		require.True(t, q.Insert(fmt.Sprintf("n%d", i), geom.NewRect(float64(i*100), 0, 10, 10)))
	}
	q.Clear()

	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.children)
	assert.Empty(t, q.Query(world))
	assert.Equal(t, -1, q.MaxStoredDepth())
}

// Query must agree with a brute-force scan for arbitrary regions.
func TestQuadTree_QueryMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	q := New(world)
	stored := make(map[string]geom.Rect)

	randRect := func(maxSize float64) geom.Rect {
		w := rng.Float64() * maxSize
		h := rng.Float64() * maxSize
		x := world.X + rng.Float64()*(world.Width-w-1)
		y := world.Y + rng.Float64()*(world.Height-h-1)
		return geom.NewRect(x, y, w, h)
	}

	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("n%d", i)
		r := randRect(400)
		require.True(t, q.Insert(id, r))
		stored[id] = r
	}
	for i := 0; i < 300; i += 3 {
		id := fmt.Sprintf("n%d", i)
		require.True(t, q.Remove(id))
		delete(stored, id)
	}

	for i := 0; i < 100; i++ {
		region := randRect(6000)
		var want []string
		for id, r := range stored {
			if r.Intersects(region) {
				want = append(want, id)
			}
		}
		sort.Strings(want)
		got := ids(q.Query(region))
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got, "region %s", region)
	}
	assert.Equal(t, len(stored), q.Len())
}
