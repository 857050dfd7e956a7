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
	"errors"
	"fmt"
)

// Validate checks every structural invariant of the graph.
//
// Description:
//
//	Checks that every edge resolves both endpoints with the right kinds,
//	that the port and incident-edge tables agree with the collections, and
//	that each spatial index holds exactly one entry per indexable entity
//	with the entity's current bounds. Entities outside the world bounds
//	must have no entry.
//
// Outputs:
//
//	error - nil when consistent, otherwise every violation joined with
//	        errors.Join, each wrapping ErrIntegrity.
func (g *Graph) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrIntegrity}, args...)...))
	}

	for _, id := range g.edgeOrder {
		e := g.edges[id]
		src, tgt := e.SourcePort(), e.TargetPort()
		switch {
		case src == nil:
			fail("edge %s source port %s does not resolve", id, e.sourcePortID)
		case tgt == nil:
			fail("edge %s target port %s does not resolve", id, e.targetPortID)
		case src.kind != PortKindOutput || tgt.kind != PortKindInput:
			fail("edge %s connects %s to %s", id, src.kind, tgt.kind)
		}
		for _, nodeID := range []string{e.sourceNodeID, e.targetNodeID} {
			if _, ok := g.incident[nodeID][id]; !ok {
				fail("edge %s missing from incident set of node %s", id, nodeID)
			}
		}
	}

	for nodeID, set := range g.incident {
		if _, ok := g.nodes[nodeID]; !ok {
			fail("incident set for missing node %s", nodeID)
		}
		for edgeID := range set {
			if _, ok := g.edges[edgeID]; !ok {
				fail("incident set of node %s names missing edge %s", nodeID, edgeID)
			}
		}
	}

	portCount := 0
	for _, n := range g.GetNodes() {
		for _, list := range [][]*Port{n.Inputs(), n.Outputs()} {
			for _, p := range list {
				portCount++
				if owner := g.ports[p.id]; owner != n.id {
					fail("port %s of node %s registered to %q", p.id, n.id, owner)
				}
			}
		}
	}
	if portCount != len(g.ports) {
		fail("port table has %d entries for %d ports", len(g.ports), portCount)
	}

	world := g.options.WorldBounds
	indexed := 0
	for _, n := range g.GetNodes() {
		item, found := g.nodeIndex.Find(n.id)
		inWorld := world.Contains(n.Bounds())
		switch {
		case found && !inWorld:
			fail("node %s indexed while outside world", n.id)
		case !found && inWorld:
			fail("node %s not indexed", n.id)
		case found && item.Bounds != n.Bounds():
			fail("node %s indexed at %s, bounds %s", n.id, item.Bounds, n.Bounds())
		}
		if found {
			indexed++
		}
	}
	if got := g.nodeIndex.Len(); got != indexed {
		fail("node index holds %d entries for %d indexed nodes", got, indexed)
	}

	indexed = 0
	for _, e := range g.GetEdges() {
		item, found := g.edgeIndex.Find(e.id)
		inWorld := world.Contains(e.Bounds())
		switch {
		case found && !inWorld:
			fail("edge %s indexed while outside world", e.id)
		case !found && inWorld:
			fail("edge %s not indexed", e.id)
		case found && item.Bounds != e.Bounds():
			fail("edge %s indexed at %s, bounds %s", e.id, item.Bounds, e.Bounds())
		}
		if found {
			indexed++
		}
	}
	if got := g.edgeIndex.Len(); got != indexed {
		fail("edge index holds %d entries for %d indexed edges", got, indexed)
	}

	return errors.Join(errs...)
}
