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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// GraphData is the serialized graph document.
type GraphData struct {
	ID    string     `json:"id" validate:"required"`
	Name  string     `json:"name"`
	Nodes []NodeData `json:"nodes" validate:"dive"`
	Edges []EdgeData `json:"edges" validate:"dive"`
}

// NodeData is the serialized form of a Node.
//
// Width and Height are optional; nil means the graph's default node size.
type NodeData struct {
	ID      string     `json:"id" validate:"required"`
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Width   *float64   `json:"width,omitempty" validate:"omitempty,gte=0"`
	Height  *float64   `json:"height,omitempty" validate:"omitempty,gte=0"`
	Inputs  []PortData `json:"inputs,omitempty" validate:"dive"`
	Outputs []PortData `json:"outputs,omitempty" validate:"dive"`
}

// PortData is the serialized form of a Port.
//
// Kind may be empty; the list a port appears in (inputs or outputs) is
// authoritative. Offset is optional; nil means the default edge placement.
type PortData struct {
	ID     string      `json:"id" validate:"required"`
	Name   string      `json:"name"`
	Kind   string      `json:"kind,omitempty" validate:"omitempty,oneof=input output"`
	Value  any         `json:"value,omitempty"`
	Offset *geom.Point `json:"offset,omitempty"`
}

// EdgeData is the serialized form of an Edge. Endpoints are referenced by
// port ID only.
type EdgeData struct {
	ID           string `json:"id"`
	SourcePortID string `json:"sourcePortId" validate:"required"`
	TargetPortID string `json:"targetPortId" validate:"required"`
}

// Validate checks the document's shape.
//
// Description:
//
//	Structural checks only: required IDs, port kinds and non-negative
//	sizes. Referential problems (an edge naming a missing port) are not
//	errors here; FromData skips such edges and reports them.
//
// Errors:
//
//	ErrInvalidDocument wrapping the validator's field errors.
func (d *GraphData) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// LoadReport summarizes what FromData restored and what it skipped.
type LoadReport struct {
	Nodes        int      `json:"nodes"`
	Edges        int      `json:"edges"`
	SkippedNodes []string `json:"skipped_nodes,omitempty"`
	SkippedEdges []string `json:"skipped_edges,omitempty"`
}

// Complete reports whether every node and edge in the document was restored.
func (r LoadReport) Complete() bool {
	return len(r.SkippedNodes) == 0 && len(r.SkippedEdges) == 0
}

// ToData snapshots the whole graph. Nodes and edges are in insertion order.
func (g *Graph) ToData() GraphData {
	data := GraphData{
		ID:    g.id,
		Name:  g.name,
		Nodes: make([]NodeData, 0, len(g.nodeOrder)),
		Edges: make([]EdgeData, 0, len(g.edgeOrder)),
	}
	for _, n := range g.GetNodes() {
		data.Nodes = append(data.Nodes, n.ToData())
	}
	for _, e := range g.GetEdges() {
		data.Edges = append(data.Edges, e.ToData())
	}
	return data
}

// FromData replaces the graph's contents with a document.
//
// Description:
//
//	Validates the document first; an invalid document leaves the graph
//	untouched. Otherwise clears the graph, adopts the document's ID and
//	name, creates every node while collecting a port lookup table, then
//	creates every edge against that table. Nodes and edges that cannot be
//	created are skipped, logged and listed in the report.
//
// Inputs:
//
//	ctx - Carries the trace span. Must not be nil.
//	data - The document.
//
// Outputs:
//
//	LoadReport - Counts and skipped IDs.
//	error - ErrInvalidDocument if validation failed.
func (g *Graph) FromData(ctx context.Context, data GraphData) (LoadReport, error) {
	ctx, span := tracer.Start(ctx, "graph.FromData",
		trace.WithAttributes(
			attribute.String("graph_id", data.ID),
			attribute.Int("document_nodes", len(data.Nodes)),
			attribute.Int("document_edges", len(data.Edges)),
		),
	)
	defer span.End()
	start := time.Now()

	var report LoadReport
	if err := data.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid document")
		recordLoad(ctx, time.Since(start), report, false)
		return report, err
	}

	g.Clear()
	g.setID(data.ID)
	g.name = data.Name

	ports := make(PortMap)
	for _, nd := range data.Nodes {
		n, err := g.CreateNode(nd)
		if err != nil {
			g.logger.Warn("skipping node while loading", "node_id", nd.ID, "error", err)
			report.SkippedNodes = append(report.SkippedNodes, nd.ID)
			continue
		}
		ports.AddNodePorts(n)
		report.Nodes++
	}

	for _, ed := range data.Edges {
		if _, err := g.CreateEdge(ed, ports); err != nil {
			g.logger.Warn("skipping edge while loading",
				"edge_id", ed.ID,
				"source", ed.SourcePortID,
				"target", ed.TargetPortID,
				"error", err,
			)
			id := ed.ID
			if id == "" {
				id = EdgeID(ed.SourcePortID, ed.TargetPortID)
			}
			report.SkippedEdges = append(report.SkippedEdges, id)
			continue
		}
		report.Edges++
	}

	g.logger.Info("graph loaded",
		"nodes", report.Nodes,
		"edges", report.Edges,
		"skipped_nodes", len(report.SkippedNodes),
		"skipped_edges", len(report.SkippedEdges),
	)
	span.SetStatus(codes.Ok, "")
	recordLoad(ctx, time.Since(start), report, true)
	return report, nil
}

// MarshalJSON encodes the graph as a GraphData document.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToData())
}

// UnmarshalJSON decodes a GraphData document and loads it with FromData.
// Skipped entities are not an error; use FromData to inspect them.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var data GraphData
	if err := json.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if g.nodes == nil {
		*g = *New(data.ID, data.Name)
	}
	_, err := g.FromData(context.Background(), data)
	return err
}

// DecodeDocument reads one JSON GraphData document from r. The document is
// not validated; FromData does that.
//
// Errors:
//
//	ErrInvalidDocument wrapping the JSON error, or the read error unchanged.
func DecodeDocument(r io.Reader) (GraphData, error) {
	var data GraphData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
		)
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
			errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return GraphData{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		return GraphData{}, err
	}
	return data, nil
}

// ReadDocument decodes the document stored at path.
func ReadDocument(path string) (GraphData, error) {
	f, err := os.Open(path)
	if err != nil {
		return GraphData{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := DecodeDocument(f)
	if err != nil {
		return GraphData{}, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
