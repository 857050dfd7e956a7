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

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrPortNotFound is returned when a referenced port id does not resolve.
	ErrPortNotFound = errors.New("port not found")

	// ErrNodeNotFound is returned when a port's owning node does not resolve.
	ErrNodeNotFound = errors.New("node not found")

	// ErrIncompatiblePorts is returned when two ports have the same kind, or
	// when the designated source port is an input.
	ErrIncompatiblePorts = errors.New("incompatible ports")

	// ErrDuplicateNode is returned when adding a node with an ID that
	// already exists in the graph.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrDuplicateEdge is returned when adding an edge with an ID that
	// already exists in the graph. Edges created through AddEdge derive their
	// ID from the port pair, so connecting the same pair twice hits this.
	ErrDuplicateEdge = errors.New("duplicate edge ID")

	// ErrDuplicatePort is returned when a port ID is already used anywhere in
	// the graph. Port IDs are graph-wide unique.
	ErrDuplicatePort = errors.New("duplicate port ID")

	// ErrInvalidNode is returned when node data fails validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidPort is returned when port data fails validation, for example
	// an input list entry whose kind says "output".
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidSize is returned for negative node dimensions.
	ErrInvalidSize = errors.New("invalid size")

	// ErrOutOfBounds is returned when an entity lies outside the world bounds
	// and therefore cannot be spatially indexed.
	ErrOutOfBounds = errors.New("entity outside world bounds")

	// ErrInvalidDocument is returned when a serialized graph document fails
	// validation. The graph is left untouched.
	ErrInvalidDocument = errors.New("invalid graph document")

	// ErrIntegrity is returned by Validate for every broken invariant.
	ErrIntegrity = errors.New("graph integrity violation")
)
