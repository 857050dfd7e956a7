// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geom provides the axis-aligned world-space geometry shared by the
// diagram entities and the spatial index.
//
// All rectangles are closed: a rectangle includes its edges, so two
// rectangles that only touch along an edge or a corner intersect, and a
// zero-area rectangle still intersects anything that covers its location.
package geom

import "fmt"

// Point is a position in world coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect is shorthand for a Rect literal.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// CenteredRect returns the rectangle of the given size centered on c.
func CenteredRect(c Point, width, height float64) Rect {
	return Rect{
		X:      c.X - width/2,
		Y:      c.Y - height/2,
		Width:  width,
		Height: height,
	}
}

// BoundsOf returns the smallest rectangle covering every point.
// It returns the zero Rect when no points are given.
func BoundsOf(points ...Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the center point.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether other lies entirely inside r. Shared edges count
// as inside.
func (r Rect) Contains(other Rect) bool {
	return other.X >= r.X &&
		other.Y >= r.Y &&
		other.Right() <= r.Right() &&
		other.Bottom() <= r.Bottom()
}

// ContainsPoint reports whether p lies inside r or on its border.
func (r Rect) ContainsPoint(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Intersects reports whether r and other share at least one point.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.Right() &&
		other.X <= r.Right() &&
		r.Y <= other.Bottom() &&
		other.Y <= r.Bottom()
}

// Quadrants splits r into four equal rectangles ordered top-left, top-right,
// bottom-left, bottom-right.
func (r Rect) Quadrants() [4]Rect {
	hw, hh := r.Width/2, r.Height/2
	return [4]Rect{
		{X: r.X, Y: r.Y, Width: hw, Height: hh},
		{X: r.X + hw, Y: r.Y, Width: hw, Height: hh},
		{X: r.X, Y: r.Y + hh, Width: hw, Height: hh},
		{X: r.X + hw, Y: r.Y + hh, Width: hw, Height: hh},
	}
}

// String returns a compact representation for logs.
func (r Rect) String() string {
	return fmt.Sprintf("{x:%g y:%g w:%g h:%g}", r.X, r.Y, r.Width, r.Height)
}
