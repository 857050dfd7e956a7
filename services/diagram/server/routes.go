// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
	"github.com/AleutianAI/LogicGraph/services/diagram/graph"
)

func (s *Server) routes(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(requestLogger(s.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(opts.MetricsHandler))

	v1 := router.Group("/v1")
	{
		v1.GET("/graph", s.handleGetGraph)
		v1.PUT("/graph", s.handlePutGraph)
		v1.GET("/graph/stats", s.handleStats)
		v1.GET("/graph/integrity", s.handleIntegrity)
		v1.GET("/graph/query", s.handleQuery)
		v1.GET("/graph/at", s.handleNodeAt)

		v1.GET("/graph/nodes/:id", s.handleGetNode)
		v1.PUT("/graph/nodes/:id/position", s.handleMoveNode)
		v1.DELETE("/graph/nodes/:id", s.handleDeleteNode)

		v1.GET("/graph/edges/:id", s.handleGetEdge)
		v1.DELETE("/graph/edges/:id", s.handleDeleteEdge)

		v1.GET("/events", func(c *gin.Context) {
			s.hub.ServeWS(c.Writer, c.Request)
		})
	}
	return router
}

// nodeResponse is a node's document form plus its computed bounds.
type nodeResponse struct {
	graph.NodeData
	Bounds geom.Rect `json:"bounds"`
}

func newNodeResponse(n *graph.Node) nodeResponse {
	return nodeResponse{NodeData: n.ToData(), Bounds: n.Bounds()}
}

// edgeResponse is an edge's document form plus resolved endpoints.
type edgeResponse struct {
	graph.EdgeData
	SourceNodeID string    `json:"sourceNodeId"`
	TargetNodeID string    `json:"targetNodeId"`
	Bounds       geom.Rect `json:"bounds"`
}

func newEdgeResponse(e *graph.Edge) edgeResponse {
	return edgeResponse{
		EdgeData:     e.ToData(),
		SourceNodeID: e.SourceNodeID(),
		TargetNodeID: e.TargetNodeID(),
		Bounds:       e.Bounds(),
	}
}

type statsResponse struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Nodes   int              `json:"nodes"`
	Edges   int              `json:"edges"`
	World   geom.Rect        `json:"world"`
	Index   graph.IndexStats `json:"index"`
	Clients int              `json:"clients"`
}

type queryResponse struct {
	Nodes []nodeResponse `json:"nodes"`
	Edges []edgeResponse `json:"edges"`
}

// regionQuery binds /graph/query parameters.
type regionQuery struct {
	X      *float64 `form:"x" binding:"required"`
	Y      *float64 `form:"y" binding:"required"`
	Width  *float64 `form:"width" binding:"required,gte=0"`
	Height *float64 `form:"height" binding:"required,gte=0"`
}

// pointQuery binds /graph/at parameters and position updates.
type pointQuery struct {
	X *float64 `form:"x" json:"x" binding:"required"`
	Y *float64 `form:"y" json:"y" binding:"required"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, kind, id string) {
	c.JSON(http.StatusNotFound, gin.H{"error": kind + " not found", "id": id})
}

func (s *Server) handleGetGraph(c *gin.Context) {
	s.mu.Lock()
	data := s.graph.ToData()
	s.mu.Unlock()

	c.JSON(http.StatusOK, data)
}

func (s *Server) handlePutGraph(c *gin.Context) {
	var data graph.GraphData
	if err := c.ShouldBindJSON(&data); err != nil {
		badRequest(c, err)
		return
	}

	report, err := s.Reload(c.Request.Context(), data)
	if err != nil {
		if errors.Is(err, graph.ErrInvalidDocument) {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleStats(c *gin.Context) {
	s.mu.Lock()
	resp := statsResponse{
		ID:    s.graph.ID(),
		Name:  s.graph.Name(),
		Nodes: s.graph.NodeCount(),
		Edges: s.graph.EdgeCount(),
		World: s.graph.WorldBounds(),
		Index: s.graph.IndexStats(),
	}
	s.mu.Unlock()
	resp.Clients = s.hub.ClientCount()

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleIntegrity(c *gin.Context) {
	s.mu.Lock()
	err := s.graph.Validate()
	s.mu.Unlock()

	if err == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	var problems []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			problems = append(problems, e.Error())
		}
	} else {
		problems = append(problems, err.Error())
	}
	c.JSON(http.StatusConflict, gin.H{"valid": false, "problems": problems})
}

func (s *Server) handleQuery(c *gin.Context) {
	var q regionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	region := geom.NewRect(*q.X, *q.Y, *q.Width, *q.Height)

	s.mu.Lock()
	nodes := s.graph.GetNodesInBounds(region)
	edges := s.graph.GetEdgesInBounds(region)
	resp := queryResponse{
		Nodes: make([]nodeResponse, 0, len(nodes)),
		Edges: make([]edgeResponse, 0, len(edges)),
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, newNodeResponse(n))
	}
	for _, e := range edges {
		resp.Edges = append(resp.Edges, newEdgeResponse(e))
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleNodeAt(c *gin.Context) {
	var q pointQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.graph.NodeAt(geom.Point{X: *q.X, Y: *q.Y})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no node at point"})
		return
	}
	c.JSON(http.StatusOK, newNodeResponse(n))
}

func (s *Server) handleGetNode(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.graph.GetNode(id)
	if !ok {
		notFound(c, "node", id)
		return
	}
	c.JSON(http.StatusOK, newNodeResponse(n))
}

func (s *Server) handleMoveNode(c *gin.Context) {
	id := c.Param("id")

	var p pointQuery
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.graph.GetNode(id)
	if !ok {
		notFound(c, "node", id)
		return
	}
	n.SetPosition(*p.X, *p.Y)
	c.JSON(http.StatusOK, newNodeResponse(n))
}

func (s *Server) handleDeleteNode(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	removed := s.graph.RemoveNode(id)
	s.mu.Unlock()

	if !removed {
		notFound(c, "node", id)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetEdge(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.graph.GetEdge(id)
	if !ok {
		notFound(c, "edge", id)
		return
	}
	c.JSON(http.StatusOK, newEdgeResponse(e))
}

func (s *Server) handleDeleteEdge(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	removed := s.graph.RemoveEdge(id)
	s.mu.Unlock()

	if !removed {
		notFound(c, "edge", id)
		return
	}
	c.Status(http.StatusNoContent)
}
