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
	"log/slog"

	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
	"github.com/AleutianAI/LogicGraph/services/diagram/quadtree"
)

// DefaultWorldBounds is the region both spatial indexes cover by default.
var DefaultWorldBounds = geom.NewRect(-10000, -10000, 20000, 20000)

// Options configures Graph behavior.
type Options struct {
	// WorldBounds is the fixed extent of both spatial indexes. Entities
	// outside it cannot be indexed.
	// Default: DefaultWorldBounds
	WorldBounds geom.Rect

	// IndexMaxDepth bounds quadtree subdivision.
	// Default: quadtree.MaxDepth
	IndexMaxDepth int

	// IndexRootCapacity is how many items the quadtree root holds before it
	// subdivides.
	// Default: quadtree.MaxItemsPerRootLeaf
	IndexRootCapacity int

	// DefaultNodeSize applies to nodes created without width/height.
	// Default: DefaultNodeSize (100x60)
	DefaultNodeSize Size

	// Logger receives integrity errors and skipped batch items.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults for graph configuration.
func DefaultOptions() Options {
	return Options{
		WorldBounds:       DefaultWorldBounds,
		IndexMaxDepth:     quadtree.MaxDepth,
		IndexRootCapacity: quadtree.MaxItemsPerRootLeaf,
		DefaultNodeSize:   DefaultNodeSize,
		Logger:            slog.Default(),
	}
}

// Option is a functional option for configuring Graph.
type Option func(*Options)

// WithWorldBounds sets the extent of the spatial indexes.
func WithWorldBounds(r geom.Rect) Option {
	return func(o *Options) {
		o.WorldBounds = r
	}
}

// WithIndexDepth sets the maximum quadtree depth.
func WithIndexDepth(depth int) Option {
	return func(o *Options) {
		o.IndexMaxDepth = depth
	}
}

// WithIndexRootCapacity sets the quadtree root bucket size.
func WithIndexRootCapacity(n int) Option {
	return func(o *Options) {
		o.IndexRootCapacity = n
	}
}

// WithDefaultNodeSize sets the size of nodes created without dimensions.
func WithDefaultNodeSize(s Size) Option {
	return func(o *Options) {
		o.DefaultNodeSize = s
	}
}

// WithLogger sets the graph's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
