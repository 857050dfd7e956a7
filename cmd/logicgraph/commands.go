// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/LogicGraph/pkg/ux"
	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
	"github.com/AleutianAI/LogicGraph/services/diagram/graph"
)

// =============================================================================
// inspect
// =============================================================================

type inspectResult struct {
	File      string           `json:"file"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Nodes     int              `json:"nodes"`
	Edges     int              `json:"edges"`
	Ports     int              `json:"ports"`
	World     geom.Rect        `json:"world"`
	Index     graph.IndexStats `json:"index"`
	NodeTypes map[string]int   `json:"node_types"`
	Load      graph.LoadReport `json:"load"`
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, report, err := a.loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			res := inspectResult{
				File:      args[0],
				ID:        g.ID(),
				Name:      g.Name(),
				Nodes:     g.NodeCount(),
				Edges:     g.EdgeCount(),
				World:     g.WorldBounds(),
				Index:     g.IndexStats(),
				NodeTypes: make(map[string]int),
				Load:      report,
			}
			for _, n := range g.GetNodes() {
				res.NodeTypes[n.Type()]++
				res.Ports += n.PortCount()
			}

			return a.emit(res, func(p *ux.Printer) {
				p.Title("Graph %s (%s)", res.ID, res.Name)
				p.Field("nodes", res.Nodes)
				p.Field("edges", res.Edges)
				p.Field("ports", res.Ports)
				p.Field("world", res.World)
				p.Field("node index", fmt.Sprintf("%d entries, depth %d", res.Index.NodeEntries, res.Index.NodeMaxDepth))
				p.Field("edge index", fmt.Sprintf("%d entries, depth %d", res.Index.EdgeEntries, res.Index.EdgeMaxDepth))

				types := make([]string, 0, len(res.NodeTypes))
				for typ := range res.NodeTypes {
					types = append(types, typ)
				}
				slices.Sort(types)
				p.Field("node types", len(types))
				for _, typ := range types {
					label := typ
					if label == "" {
						label = "(untyped)"
					}
					p.Item("%-16s %d", label, res.NodeTypes[typ])
				}
				printSkipped(p, report)
			})
		},
	}
}

func printSkipped(p *ux.Printer, report graph.LoadReport) {
	if len(report.SkippedNodes) > 0 {
		p.Warning("skipped nodes: %v", report.SkippedNodes)
	}
	if len(report.SkippedEdges) > 0 {
		p.Warning("skipped edges: %v", report.SkippedEdges)
	}
}

// =============================================================================
// query
// =============================================================================

type queryHit struct {
	ID     string    `json:"id"`
	Type   string    `json:"type,omitempty"`
	Source string    `json:"source,omitempty"`
	Target string    `json:"target,omitempty"`
	Bounds geom.Rect `json:"bounds"`
}

type queryResult struct {
	Region geom.Rect  `json:"region"`
	Nodes  []queryHit `json:"nodes"`
	Edges  []queryHit `json:"edges"`
}

func (a *app) queryCmd() *cobra.Command {
	var region geom.Rect

	cmd := &cobra.Command{
		Use:   "query FILE",
		Short: "List nodes and edges intersecting a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if region.Width < 0 || region.Height < 0 {
				return fmt.Errorf("region size must not be negative: %s", region)
			}
			g, _, err := a.loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			res := queryResult{Region: region, Nodes: []queryHit{}, Edges: []queryHit{}}
			for _, n := range g.GetNodesInBounds(region) {
				res.Nodes = append(res.Nodes, queryHit{ID: n.ID(), Type: n.Type(), Bounds: n.Bounds()})
			}
			for _, e := range g.GetEdgesInBounds(region) {
				res.Edges = append(res.Edges, queryHit{
					ID:     e.ID(),
					Source: e.SourcePortID(),
					Target: e.TargetPortID(),
					Bounds: e.Bounds(),
				})
			}

			return a.emit(res, func(p *ux.Printer) {
				p.Title("Region %s", res.Region)
				p.Field("nodes", len(res.Nodes))
				for _, h := range res.Nodes {
					p.Item("%-20s %-12s %s", h.ID, h.Type, h.Bounds)
				}
				p.Field("edges", len(res.Edges))
				for _, h := range res.Edges {
					p.Item("%-20s %s -> %s", h.ID, h.Source, h.Target)
				}
			})
		},
	}

	cmd.Flags().Float64Var(&region.X, "x", 0, "region left")
	cmd.Flags().Float64Var(&region.Y, "y", 0, "region top")
	cmd.Flags().Float64Var(&region.Width, "width", 0, "region width")
	cmd.Flags().Float64Var(&region.Height, "height", 0, "region height")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

// =============================================================================
// validate
// =============================================================================

type validateResult struct {
	File     string           `json:"file"`
	Valid    bool             `json:"valid"`
	Load     graph.LoadReport `json:"load"`
	Problems []string         `json:"problems,omitempty"`
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Load a document and check graph integrity",
		Long: `validate loads FILE and checks every structural invariant of the
resulting graph. It exits 1 when entities were skipped during loading or
an invariant is broken, and 2 when the document cannot be loaded at all.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, report, err := a.loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			res := validateResult{File: args[0], Load: report}
			if err := g.Validate(); err != nil {
				if joined, ok := err.(interface{ Unwrap() []error }); ok {
					for _, e := range joined.Unwrap() {
						res.Problems = append(res.Problems, e.Error())
					}
				} else {
					res.Problems = append(res.Problems, err.Error())
				}
			}
			res.Valid = len(res.Problems) == 0 && report.Complete()

			if err := a.emit(res, func(p *ux.Printer) {
				if res.Valid {
					p.Success("%s: ok (%d nodes, %d edges)", res.File, report.Nodes, report.Edges)
					return
				}
				p.Error("%s: problems found", res.File)
				printSkipped(p, report)
				for _, problem := range res.Problems {
					p.Item("%s", problem)
				}
			}); err != nil {
				return err
			}
			if !res.Valid {
				return errFindings
			}
			return nil
		},
	}
}

// =============================================================================
// config
// =============================================================================

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOut {
				return a.emit(a.cfg, nil)
			}
			data, err := a.cfg.Marshal()
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = a.out.Write(data)
			return err
		},
	}
}
